package model

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Gopher0727/Nexus/internal/apperr"
)

// CreateGuildRequest 创建公会的请求体
// model 字段即使出现在请求体中也会被忽略
type CreateGuildRequest struct {
	GuildName      string `json:"guildName" validate:"required,max=100"`
	GuildID        string `json:"guildID" validate:"required,max=64"`
	Owner          string `json:"owner" validate:"required,max=64"`
	AnnouncementID string `json:"announcementID" validate:"omitempty,max=64"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息里使用 JSON 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCreate trims the payload and checks it against the creation rule.
// It returns the candidate guild (without an ID) or a validation *apperr.Error.
func ValidateCreate(req *CreateGuildRequest) (*Guild, error) {
	if req == nil {
		return nil, apperr.Validation([]apperr.FieldError{{Field: "body", Message: "is required"}})
	}

	trimmed := CreateGuildRequest{
		GuildName:      strings.TrimSpace(req.GuildName),
		GuildID:        strings.TrimSpace(req.GuildID),
		Owner:          strings.TrimSpace(req.Owner),
		AnnouncementID: strings.TrimSpace(req.AnnouncementID),
	}

	if err := validate.Struct(&trimmed); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		fields := make([]apperr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperr.FieldError{
				Field:   fe.Field(),
				Message: describe(fe),
			})
		}
		return nil, apperr.Validation(fields)
	}

	return &Guild{
		Model:          ModelGuild,
		GuildName:      trimmed.GuildName,
		GuildID:        trimmed.GuildID,
		Owner:          trimmed.Owner,
		AnnouncementID: trimmed.AnnouncementID,
	}, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

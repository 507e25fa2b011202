package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

// Supported screenshot content types
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("platform_id", validatePlatformID); err != nil {
		panic(fmt.Sprintf("failed to register platform_id validator: %v", err))
	}
	if err := Validate.RegisterValidation("image_mime", validateImageMIME); err != nil {
		panic(fmt.Sprintf("failed to register image_mime validator: %v", err))
	}
}

// CreateCampaignRequest is the body of a campaign creation
type CreateCampaignRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// CreatePostRequest is the body of a post creation
type CreatePostRequest struct {
	PlatformID string `json:"platform_id" validate:"required,platform_id"`
	Name       string `json:"name" validate:"required,min=1,max=200"`
}

// ImageUpload describes one uploaded screenshot before it is stored
type ImageUpload struct {
	Name     string `validate:"required,max=255"`
	MIMEType string `validate:"required,image_mime"`
	Size     int64  `validate:"gt=0"`
}

func validatePlatformID(fl validator.FieldLevel) bool {
	return models.PlatformID(fl.Field().String()).Valid()
}

func validateImageMIME(fl validator.FieldLevel) bool {
	return IsAllowedImageType(fl.Field().String())
}

// IsAllowedImageType reports whether mimeType is a supported screenshot
// format. Parameters such as charset are ignored.
func IsAllowedImageType(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return allowedImageTypes[strings.ToLower(strings.TrimSpace(base))]
}

// Struct validates s and flattens validator errors into one readable error
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "platform_id":
		return fmt.Sprintf("invalid platform_id: %v", fe.Value())
	case "image_mime":
		return fmt.Sprintf("unsupported image type: %v", fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// SanitizeFilename strips any path and control characters from an uploaded file name
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

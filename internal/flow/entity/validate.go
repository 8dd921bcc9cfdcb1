package entity

import (
	"regexp"
	"strings"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
)

var (
	nameRe        = regexp.MustCompile(`^[a-zA-Z0-9_. -]+$`)
	nameNoSpaceRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// validateName 名称：1-128字符，字母数字及 _ - . 空格
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("name is required")
	}
	if len(name) > 128 {
		return "", apperr.Validation("name should not be longer than 128 characters")
	}
	if !nameRe.MatchString(name) {
		return "", apperr.Validation("name should contain a-z, A-Z, 0-9, _, -, ., and spaces, receive %s", name)
	}
	return name, nil
}

// validateNameWithoutSpace 标识符名称：不允许空格
func validateNameWithoutSpace(name string) (string, error) {
	if len(name) > 128 {
		return "", apperr.Validation("name should not be longer than 128 characters")
	}
	if !nameNoSpaceRe.MatchString(name) {
		return "", apperr.Validation("name should contain a-z, A-Z, 0-9, _, -, . without any space, receive %s", name)
	}
	return name, nil
}

// validateShortParagraph 短文本：最长500字符
func validateShortParagraph(p string) (string, error) {
	if len(p) > 500 {
		return "", apperr.Validation("paragraph should not be longer than 500 characters")
	}
	return strings.TrimSpace(p), nil
}

// validateMediumParagraph 中等文本：最长4000字符
func validateMediumParagraph(p string) (string, error) {
	if len(p) > 4000 {
		return "", apperr.Validation("paragraph should not be longer than 4000 characters")
	}
	return strings.TrimSpace(p), nil
}

// normalizeEnum 枚举值统一小写去空格
func normalizeEnum(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

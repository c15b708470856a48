package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxRoomNameLength = 64
	minRoomPlayers    = 2
	maxRoomPlayers    = 32
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("roomname", func(fl validator.FieldLevel) bool {
			_, err := validateRoomName(fl.Field().String())
			return err == nil
		})
	})
}

func validateRoomName(name string) (string, error) {
	trimmed := normalizeText(name)
	if trimmed == "" {
		return "", errors.New("room name is required")
	}
	if utf8.RuneCountInString(trimmed) > maxRoomNameLength {
		return "", fmt.Errorf("room name must be %d characters or fewer", maxRoomNameLength)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

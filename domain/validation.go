package domain

import (
	"fmt"
	"pulse-chat/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks content and destination of a send intent.
// Membership is not checked here, it needs the room index.
func (c SendMessageCommand) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("%w: content is empty", errors.ErrInvalidMessage)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	return nil
}

func (c TypingCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	return nil
}

func (c CreateRoomCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is empty", errors.ErrInvalidRoom)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRoom, err)
	}
	return nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"time"

	"github.com/wneessen/go-mail"
)

func (s *Service) BuildMessage(to string, event Event, at time.Time) (*mail.Msg, error) {
	return s.buildMessage(to, event, at)
}

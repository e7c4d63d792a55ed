package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/phone"
)

// LogNotifier writes messages to the log instead of delivering them. It backs
// dry runs and the demo mode.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Global().Module(componentNotifier).Module(ProviderLog)}
}

func (l *LogNotifier) Name() string { return ProviderLog }

func (l *LogNotifier) Send(_ context.Context, phoneNumber, message string) (*Receipt, error) {
	if err := requireMessage(message); err != nil {
		return nil, err
	}
	to, err := phone.E164(phoneNumber)
	if err != nil {
		return nil, err
	}
	l.log.Info("message not delivered (log provider)",
		logger.String("to", phone.Mask(to)),
		logger.String("message", message))
	return &Receipt{
		Provider:    ProviderLog,
		MessageID:   uuid.NewString(),
		Status:      "logged",
		Destination: to,
		SubmittedAt: time.Now(),
	}, nil
}

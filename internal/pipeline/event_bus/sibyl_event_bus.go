package event_bus

import (
	"fmt"

	"github.com/asaskevich/EventBus"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// SibylEventBus publishes OutputType values and hands subscribers InputType
// values. Payloads cross the bus as JSON so that each subscriber owns its copy.
type SibylEventBus[InputType any, OutputType any] interface {
	Subscribe(topic string, handler func(input InputType) error, transactional bool) error
	Publish(topic string, arg OutputType) error
	// WaitAsync blocks until every asynchronous handler has returned.
	WaitAsync()
}

type SibylEventBusImpl[InputType any, OutputType any] struct {
	eventBus EventBus.Bus
	logger   *zap.Logger
}

func NewSibylEventBus[InputType any, OutputType any](
	eventBus EventBus.Bus,
	logger *zap.Logger,
) SibylEventBus[InputType, OutputType] {
	return &SibylEventBusImpl[InputType, OutputType]{
		eventBus: eventBus,
		logger:   logger,
	}
}

func (ev *SibylEventBusImpl[InputType, OutputType]) Subscribe(
	topic string,
	handler func(input InputType) error,
	transactional bool,
) error {
	err := ev.eventBus.SubscribeAsync(
		topic,
		func(arg string) {
			var input InputType
			err := sonic.UnmarshalString(arg, &input)
			if err != nil {
				ev.logger.Error("Failed to unmarshal input during subscription of topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
				return
			}
			err = handler(input)
			if err != nil {
				ev.logger.Error("Failed to handle input during subscription of topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		},
		transactional,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

func (ev *SibylEventBusImpl[InputType, OutputType]) Publish(
	topic string,
	arg OutputType,
) error {
	payload, err := sonic.MarshalString(arg)
	if err != nil {
		return fmt.Errorf("failed to marshal output during publishing of topic %s: %w", topic, err)
	}
	ev.eventBus.Publish(topic, payload)
	return nil
}

func (ev *SibylEventBusImpl[InputType, OutputType]) WaitAsync() {
	ev.eventBus.WaitAsync()
}

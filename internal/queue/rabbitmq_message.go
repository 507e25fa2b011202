package queue

import (
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrAlreadySettled is returned by Ack or Nack on a message that was
// already acknowledged or rejected
var ErrAlreadySettled = errors.New("message already settled")

// Message is one delivered job. Exactly one Ack or Nack settles it; the
// consumer channel stays open until every delivered message is settled.
type Message struct {
	Job *Job

	tag     uint64
	acker   amqp.Acknowledger
	once    sync.Once
	settled func()
}

func newMessage(job *Job, d amqp.Delivery, settled func()) *Message {
	return &Message{Job: job, tag: d.DeliveryTag, acker: d.Acknowledger, settled: settled}
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.settle(func() error { return m.acker.Ack(m.tag, false) })
}

// Nack rejects the message. Without requeue it is dead-lettered.
func (m *Message) Nack(requeue bool) error {
	return m.settle(func() error { return m.acker.Nack(m.tag, false, requeue) })
}

// GetJob returns the decoded job
func (m *Message) GetJob() *Job {
	return m.Job
}

func (m *Message) settle(fn func() error) error {
	err := ErrAlreadySettled
	m.once.Do(func() {
		err = fn()
		if m.settled != nil {
			m.settled()
		}
	})
	return err
}

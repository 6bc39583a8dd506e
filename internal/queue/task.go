package queue

import (
	"errors"
	"fmt"
)

const (
	// TaskSessionExpire clears session tokens past their expiry.
	TaskSessionExpire = "session.expire"
	// TaskImageVerify checks that an event's image reached blob storage.
	TaskImageVerify = "image.verify"
)

var ErrMalformedTask = errors.New("malformed task")

type Task struct {
	Type     string
	EventID  string
	ImageRef string
}

// values flattens the task into stream fields in a fixed order.
func (t Task) values() []any {
	out := []any{"type", t.Type}
	if t.EventID != "" {
		out = append(out, "event_id", t.EventID)
	}
	if t.ImageRef != "" {
		out = append(out, "image_ref", t.ImageRef)
	}
	return out
}

func DecodeTask(values map[string]interface{}) (Task, error) {
	typ, ok := values["type"].(string)
	if !ok || typ == "" {
		return Task{}, fmt.Errorf("%w: missing type", ErrMalformedTask)
	}
	task := Task{Type: typ}
	task.EventID, _ = values["event_id"].(string)
	task.ImageRef, _ = values["image_ref"].(string)
	return task, nil
}

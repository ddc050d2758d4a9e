package amqp

import (
	"testing"
	"time"
)

func TestExpenseChangeMessageRoundTrip(t *testing.T) {
	msg := NewExpenseChangeMessage("abc-123", ActionUpdated)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := ExpenseChangeMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.ID != "abc-123" || got.Action != ActionUpdated {
		t.Errorf("round trip = %+v", got)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Errorf("timestamp not preserved: %v", got.Timestamp)
	}
}

func TestExpenseChangeMessageFromJSON_Malformed(t *testing.T) {
	if _, err := ExpenseChangeMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("malformed payload should fail to decode")
	}
}

package domain

import (
	"testing"
	"time"
)

func TestNotificationPayload(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	tests := []struct {
		name string
		in   Notification
		want NotificationPayload
	}{
		{
			name: "unread in utc",
			in:   Notification{ID: 1, Message: "hi", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
			want: NotificationPayload{ID: 1, Message: "hi", CreatedAt: "2024-05-01T10:00:00Z"},
		},
		{
			name: "read with offset and nanos",
			in:   Notification{ID: 2, Message: "x", IsRead: true, CreatedAt: time.Date(2024, 5, 1, 13, 0, 0, 500, moscow)},
			want: NotificationPayload{ID: 2, Message: "x", IsRead: true, CreatedAt: "2024-05-01T10:00:00.0000005Z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Payload(); got != tt.want {
				t.Fatalf("Payload() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDefaultPreferenceEnablesEverything(t *testing.T) {
	pref := DefaultPreference(7)
	if pref.UserID != 7 || !pref.EmailNotifications || !pref.PushNotifications {
		t.Fatalf("unexpected default preference: %+v", pref)
	}
}

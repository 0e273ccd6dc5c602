package logsender

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/academic360/notifier/internal/domain/model"
)

func TestSend_LogsAndSucceeds(t *testing.T) {
	var buf bytes.Buffer
	client := New(model.ChannelEmail, slog.New(slog.NewTextHandler(&buf, nil)))

	first := client.Send(context.Background(), model.Message{Address: "a@example.test", TemplateName: "welcome"})
	second := client.Send(context.Background(), model.Message{Address: "b@example.test", TemplateName: "welcome"})

	assert.True(t, first.OK)
	assert.Equal(t, "log-1", first.ProviderID)
	assert.Equal(t, "log-2", second.ProviderID)

	out := buf.String()
	assert.Contains(t, out, "channel=email")
	assert.Contains(t, out, "template=welcome")
	assert.Contains(t, out, "address=a@example.test")
}

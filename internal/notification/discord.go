package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/properties"
	"go.uber.org/zap"
)

const (
	colorRed    = 16711680
	colorGreen  = 65280
	colorYellow = 16776960
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Discord posts run outcomes to webhooks. A webhook left empty turns the
// matching notification into a no-op.
type Discord struct {
	urls   properties.Discord
	client *http.Client
}

func NewDiscord(cfg properties.Discord) *Discord {
	return &Discord{urls: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

func (d *Discord) Error(errorMessage string) error {
	return d.send(d.urls.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("Satfusion\n\nAn error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) Success(successMessage string) error {
	return d.send(d.urls.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: fmt.Sprintf("Satfusion\n\n%s", successMessage),
		Color:       colorGreen,
	})
}

func (d *Discord) Warn(warnMessage string) error {
	url := d.urls.WarnURL
	if url == "" {
		url = d.urls.ErrorURL
	}
	return d.send(url, DiscordEmbed{
		Title:       "⚠️ Warning Notification",
		Description: fmt.Sprintf("Satfusion\n\n%s", warnMessage),
		Color:       colorYellow,
	})
}

func (d *Discord) send(url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}
	// Discord rejects embed descriptions over 4096 characters.
	if r := []rune(embed.Description); len(r) > 4000 {
		embed.Description = string(r[:4000]) + "..."
	}
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := d.client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		log.Warn("notification: discord post failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

type Config struct {
	Token   string
	BaseURL string
}

// BotProvider sends messages through the Telegram Bot API.
type BotProvider struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewBot(cfg Config) *BotProvider {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &BotProvider{
		token:   strings.TrimSpace(cfg.Token),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (p *BotProvider) SendMessage(ctx context.Context, chatID int64, text string) error {
	if p.token == "" {
		return errors.New("telegram_token_missing")
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.New("telegram_response_invalid")
	}
	if !result.OK {
		message := strings.TrimSpace(result.Description)
		if message == "" {
			message = "telegram_request_failed"
		}
		return errors.New(message)
	}
	return nil
}

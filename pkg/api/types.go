package api

import (
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// PostMessageRequest is the body of POST /v1/channels/{channel}/messages.
// ID and TS are normally set by the sender's composer; the server fills
// them only when missing.
type PostMessageRequest struct {
	ID     string                `json:"id,omitempty"`
	Sender models.SenderIdentity `json:"sender"`
	Body   string                `json:"body"`
	TS     int64                 `json:"ts,omitempty"`
}

type AcceptedResponse struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	TS      int64  `json:"ts,omitempty"`
}

type ReactRequest struct {
	Kind     string `json:"kind"`
	Reporter string `json:"reporter,omitempty"`
}

type TalliesRequest struct {
	IDs []string `json:"ids"`
}

type TalliesResponse struct {
	Tallies map[string]models.ReactionTally `json:"tallies"`
}

type HistoryResponse struct {
	Channel  string           `json:"channel"`
	Messages []models.Message `json:"messages"`
}

type TopResponse struct {
	Channel    string             `json:"channel"`
	Highlights []models.Highlight `json:"highlights"`
}

type DirectResponse struct {
	Channel string `json:"channel"`
}

// ChannelSummary merges catalogue info with stored activity.
type ChannelSummary struct {
	models.ChannelInfo
	Messages int64 `json:"messages"`
	LastTS   int64 `json:"last_ts,omitempty"`
}

type ChannelsResponse struct {
	Channels []ChannelSummary `json:"channels"`
}

package model

import (
	"time"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
)

type ModerationCommand struct {
	Kind       enums.CommandKind
	ReviewID   int64
	Issuer     string
	ReceivedAt time.Time
	// Mention is the bot username from a "/cmd@bot" suffix, without the "@".
	Mention string
}

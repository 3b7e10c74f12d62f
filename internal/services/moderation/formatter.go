package moderation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
	"github.com/ivankudzin/brokerreviews/internal/domain/model"
	"github.com/ivankudzin/brokerreviews/internal/pkg/markdown"
)

const (
	ExcerptLimit = 150
	// NameLimit caps broker, author and decider names in rendered messages.
	NameLimit = 128
	ellipsis  = "…"
	timeLayout   = "2006-01-02 15:04 UTC"
)

// FormatReview renders the channel announcement for a pending review. Every dynamic value is
// escaped; the template and the command hints are written in valid MarkdownV2 already.
func FormatReview(review model.Review) string {
	var b strings.Builder

	b.WriteString("*New review \\#")
	b.WriteString(strconv.FormatInt(review.ID, 10))
	b.WriteString("*\n")
	writeName(&b, "Broker", review.BrokerName)
	writeName(&b, "Author", review.Author)
	b.WriteString("Rating: ")
	b.WriteString(formatRating(review.Rating))
	b.WriteString("\n")
	if !review.SubmittedAt.IsZero() {
		writeField(&b, "Submitted", review.SubmittedAt.UTC().Format(timeLayout))
	}

	b.WriteString("\n")
	b.WriteString(markdown.Escape(TruncateExcerpt(review.Excerpt)))
	b.WriteString("\n")

	if link := strings.TrimSpace(review.ReviewLink); link != "" {
		b.WriteString("\n[Open review](")
		b.WriteString(markdown.EscapeLinkURL(link))
		b.WriteString(")\n")
	}

	b.WriteString("\n")
	b.WriteString(CommandHints(review.ID))
	return b.String()
}

// CommandHints is the fixed command line for a review. The underscore is escaped so the
// command renders literally and stays tappable.
func CommandHints(reviewID int64) string {
	id := strconv.FormatInt(reviewID, 10)
	return "/approve\\_" + id + "  /reject\\_" + id + "  /view\\_" + id
}

func FormatDecision(review model.Review) string {
	verb := "approved and published"
	if review.State == enums.ReviewStateRejected {
		verb = "rejected"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Review \\#%d %s", review.ID, verb)
	if by := strings.TrimSpace(review.DecidedBy); by != "" {
		b.WriteString(" by ")
		b.WriteString(markdown.Escape(truncateRunes(by, NameLimit)))
	}
	if review.DecidedAt != nil {
		b.WriteString(" at ")
		b.WriteString(formatTime(*review.DecidedAt))
	}
	return b.String()
}

func FormatAlreadyDecided(review model.Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review \\#%d was already decided: *%s*", review.ID, markdown.Escape(string(review.State)))
	if by := strings.TrimSpace(review.DecidedBy); by != "" {
		b.WriteString(" by ")
		b.WriteString(markdown.Escape(truncateRunes(by, NameLimit)))
	}
	return b.String()
}

func FormatUnknownReview(reviewID int64) string {
	return fmt.Sprintf("Review \\#%d not found", reviewID)
}

// FormatDetail renders the full review for /view, including the untruncated excerpt.
func FormatDetail(review model.Review) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Review \\#%d*\n", review.ID)
	writeField(&b, "State", string(review.State))
	writeName(&b, "Broker", review.BrokerName)
	writeName(&b, "Author", review.Author)
	b.WriteString("Rating: ")
	b.WriteString(formatRating(review.Rating))
	b.WriteString("\n")
	if !review.SubmittedAt.IsZero() {
		writeField(&b, "Submitted", review.SubmittedAt.UTC().Format(timeLayout))
	}
	if review.Decided() {
		if review.DecidedAt != nil {
			writeField(&b, "Decided", review.DecidedAt.UTC().Format(timeLayout))
		}
		writeName(&b, "Decided by", review.DecidedBy)
	}

	b.WriteString("\n")
	b.WriteString(markdown.Escape(truncateRunes(review.Excerpt, detailExcerptLimit)))
	b.WriteString("\n")

	if link := strings.TrimSpace(review.ReviewLink); link != "" {
		b.WriteString("\n[Open review](")
		b.WriteString(markdown.EscapeLinkURL(link))
		b.WriteString(")\n")
	}

	if !review.Decided() {
		b.WriteString("\n")
		b.WriteString(CommandHints(review.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// detailExcerptLimit keeps an escaped detail message well under Telegram's 4096 character cap.
const detailExcerptLimit = 1500

// TruncateExcerpt caps the excerpt at ExcerptLimit characters, appending an ellipsis when
// anything was cut. It runs before escaping.
func TruncateExcerpt(excerpt string) string {
	return truncateRunes(excerpt, ExcerptLimit)
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + ellipsis
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(markdown.Escape(value))
	b.WriteString("\n")
}

func writeName(b *strings.Builder, label, value string) {
	writeField(b, label, truncateRunes(value, NameLimit))
}

func formatRating(rating float64) string {
	if math.IsNaN(rating) {
		rating = 0
	}
	rating = math.Max(0, math.Min(5, rating))

	full := int(math.Round(rating))
	stars := strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
	return stars + " " + markdown.Escape(strconv.FormatFloat(rating, 'f', -1, 64)+"/5")
}

func formatTime(t time.Time) string {
	return markdown.Escape(t.UTC().Format(timeLayout))
}

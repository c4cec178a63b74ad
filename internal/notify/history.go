package notify

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/store"
)

// RecordDispatch writes one notification history record per subscriber
// whose species set overlaps the detected species. SNS handles the
// actual delivery through filter policies; history only mirrors what
// the filters will match. Returns the number of records written.
// Per-record failures are logged and skipped.
func RecordDispatch(ctx context.Context, s store.MediaStore, species []string, fileKey, messageID string) int {
	if len(species) == 0 {
		return 0
	}

	subs, err := s.ScanSubscriptions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load subscriptions for history recording")
		return 0
	}

	detected := make(map[string]bool, len(species))
	for _, sp := range species {
		detected[strings.ToLower(strings.TrimSpace(sp))] = true
	}

	written := 0
	for _, sub := range subs {
		if !detected[strings.ToLower(sub.Species)] {
			continue
		}
		rec := &store.NotificationRecord{
			Email:     sub.Email,
			ID:        uuid.NewString(),
			Species:   strings.ToLower(sub.Species),
			FileKey:   fileKey,
			MessageID: messageID,
		}
		if err := s.PutNotification(ctx, rec); err != nil {
			log.Warn().Err(err).Str("email", sub.Email).Msg("Failed to write notification history")
			continue
		}
		written++
	}
	return written
}

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/rs/zerolog/log"
)

// --- Email subscriptions ---

func (s *DynamoStore) PutSubscription(ctx context.Context, sub *Subscription) error {
	if sub.CreatedAt == "" {
		sub.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	species := strings.ToLower(strings.TrimSpace(sub.Species))
	if err := s.putItem(ctx, pkSub+sub.Email, species, sub, 0); err != nil {
		return fmt.Errorf("put subscription %s/%s: %w", sub.Email, species, err)
	}

	log.Debug().Str("email", sub.Email).Str("species", species).Msg("Subscription persisted")
	return nil
}

func (s *DynamoStore) GetSubscriptions(ctx context.Context, email string) ([]*Subscription, error) {
	items, err := s.queryByPK(ctx, pkSub+email)
	if err != nil {
		return nil, fmt.Errorf("get subscriptions %s: %w", email, err)
	}

	subs := make([]*Subscription, 0, len(items))
	for _, item := range items {
		var sub Subscription
		if err := attributevalue.UnmarshalMap(item, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscription %s: %w", email, err)
		}
		sub.Email = email
		sub.Species = stringAttr(item, "SK")
		subs = append(subs, &sub)
	}
	return subs, nil
}

func (s *DynamoStore) DeleteSubscription(ctx context.Context, email, species string) error {
	species = strings.ToLower(strings.TrimSpace(species))
	if err := s.deleteItem(ctx, pkSub+email, species); err != nil {
		return fmt.Errorf("delete subscription %s/%s: %w", email, species, err)
	}
	log.Debug().Str("email", email).Str("species", species).Msg("Subscription deleted")
	return nil
}

func (s *DynamoStore) ScanSubscriptions(ctx context.Context) ([]*Subscription, error) {
	items, err := s.scanByPKPrefix(ctx, pkSub)
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions: %w", err)
	}

	subs := make([]*Subscription, 0, len(items))
	for _, item := range items {
		var sub Subscription
		if err := attributevalue.UnmarshalMap(item, &sub); err != nil {
			log.Warn().Err(err).Str("pk", stringAttr(item, "PK")).Msg("Skipping unreadable subscription record")
			continue
		}
		sub.Email = strings.TrimPrefix(stringAttr(item, "PK"), pkSub)
		sub.Species = stringAttr(item, "SK")
		subs = append(subs, &sub)
	}
	return subs, nil
}

// --- Notification history ---

func (s *DynamoStore) PutNotification(ctx context.Context, rec *NotificationRecord) error {
	if rec.SentAt == "" {
		rec.SentAt = time.Now().UTC().Format(time.RFC3339)
	}

	sk := rec.SentAt + "#" + rec.ID
	if err := s.putItem(ctx, pkNotify+rec.Email, sk, rec, NotificationTTL); err != nil {
		return fmt.Errorf("put notification %s: %w", rec.Email, err)
	}
	return nil
}

func (s *DynamoStore) GetNotifications(ctx context.Context, email string) ([]*NotificationRecord, error) {
	items, err := s.queryByPK(ctx, pkNotify+email)
	if err != nil {
		return nil, fmt.Errorf("get notifications %s: %w", email, err)
	}

	records := make([]*NotificationRecord, 0, len(items))
	for _, item := range items {
		var rec NotificationRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal notification %s: %w", email, err)
		}
		rec.Email = email
		records = append(records, &rec)
	}

	// Newest first. The sort key starts with the RFC 3339 timestamp, so
	// string order is chronological.
	sort.Slice(records, func(i, j int) bool {
		return records[i].SentAt > records[j].SentAt
	})
	return records, nil
}

func (s *DynamoStore) ScanNotifications(ctx context.Context) ([]*NotificationRecord, error) {
	items, err := s.scanByPKPrefix(ctx, pkNotify)
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}

	records := make([]*NotificationRecord, 0, len(items))
	for _, item := range items {
		var rec NotificationRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			log.Warn().Err(err).Str("pk", stringAttr(item, "PK")).Msg("Skipping unreadable notification record")
			continue
		}
		rec.Email = strings.TrimPrefix(stringAttr(item, "PK"), pkNotify)
		records = append(records, &rec)
	}
	return records, nil
}

package server

import (
	"context"
	"fmt"

	"thriftwatch/internal/client"
	"thriftwatch/internal/misc"
	"thriftwatch/internal/model"
)

// notifyNewHighRelevance creates one in-app notification per new
// high-relevance record, capped per run so one productive cycle cannot flood
// an inbox. One failed insert skips that record only. When the search has
// email enabled, a digest is sent after the inserts; a delivery failure is
// logged and does not roll anything back.
func notifyNewHighRelevance(
	ctx context.Context,
	store notificationStore,
	mail mailSender,
	log logger,
	ss model.SavedSearch,
	records []model.SearchResultRecord,
	limit int,
) int {
	if !ss.NotifyEnabled || len(records) == 0 {
		return 0
	}
	if len(records) > limit {
		log.Debugf("notifyNewHighRelevance: Capping notifications from %d to %d for SavedSearch ID: %s",
			len(records), limit, ss.ID.Hex())
		records = records[:limit]
	}

	created := 0
	for _, rec := range records {
		n := model.Notification{
			OwnerID: ss.OwnerID,
			Type:    model.NotificationTypeNewItem,
			Message: fmt.Sprintf("New match for %q: %s ($%.2f on %s, score %d/10)",
				ss.Name, misc.StringLimit(rec.Listing.Title, 60), rec.Listing.Price,
				rec.Listing.Marketplace, rec.Analysis.RelevanceScore),
			Data: model.NotificationData{
				ItemID:         rec.Listing.ExternalID,
				SearchID:       ss.ID.Hex(),
				Price:          rec.Listing.Price,
				Title:          rec.Listing.Title,
				URL:            rec.Listing.URL,
				Marketplace:    rec.Listing.Marketplace,
				RelevanceScore: rec.Analysis.RelevanceScore,
			},
		}
		if _, err := store.NotificationInsert(ctx, n); err != nil {
			log.Errorf("notifyNewHighRelevance: Error inserting Notification for SavedSearch ID: %s, ExternalID: %s, err: %v",
				ss.ID.Hex(), rec.Listing.ExternalID, err)
			continue
		}
		created++
	}

	if ss.EmailEnabled && created > 0 {
		mailReq := client.MailSendRequest{
			RecipientID: ss.OwnerID,
			Subject:     fmt.Sprintf("%d new high-relevance find(s) for %q", created, ss.Name),
			Message:     buildMailMessage(ss, records, created),
		}
		if _, err := mail.MailSend(ctx, mailReq); err != nil {
			log.Errorf("notifyNewHighRelevance: Error sending mail for SavedSearch ID: %s, err: %v", ss.ID.Hex(), err)
		}
	}
	return created
}

// notifyPriceDrops creates one in-app notification per refreshed record whose
// price fell since the last run, under the same per-run cap and per-insert
// failure isolation as new-item dispatch. Price drops never trigger email.
func notifyPriceDrops(
	ctx context.Context,
	store notificationStore,
	log logger,
	ss model.SavedSearch,
	drops []priceDrop,
	limit int,
) int {
	if !ss.NotifyEnabled || len(drops) == 0 {
		return 0
	}
	if len(drops) > limit {
		log.Debugf("notifyPriceDrops: Capping notifications from %d to %d for SavedSearch ID: %s",
			len(drops), limit, ss.ID.Hex())
		drops = drops[:limit]
	}

	created := 0
	for _, d := range drops {
		rec := d.record
		n := model.Notification{
			OwnerID: ss.OwnerID,
			Type:    model.NotificationTypePriceDrop,
			Message: fmt.Sprintf("Price drop for %q: %s now $%.2f, was $%.2f on %s",
				ss.Name, misc.StringLimit(rec.Listing.Title, 60), rec.Listing.Price,
				d.oldPrice, rec.Listing.Marketplace),
			Data: model.NotificationData{
				ItemID:         rec.Listing.ExternalID,
				SearchID:       ss.ID.Hex(),
				Price:          rec.Listing.Price,
				OldPrice:       d.oldPrice,
				Title:          rec.Listing.Title,
				URL:            rec.Listing.URL,
				Marketplace:    rec.Listing.Marketplace,
				RelevanceScore: rec.Analysis.RelevanceScore,
			},
		}
		if _, err := store.NotificationInsert(ctx, n); err != nil {
			log.Errorf("notifyPriceDrops: Error inserting Notification for SavedSearch ID: %s, ExternalID: %s, err: %v",
				ss.ID.Hex(), rec.Listing.ExternalID, err)
			continue
		}
		created++
	}
	return created
}

func buildMailMessage(ss model.SavedSearch, records []model.SearchResultRecord, created int) string {
	msg := fmt.Sprintf("Your saved search %q turned up %d new high-relevance listing(s):\n", ss.Name, created)
	for _, rec := range records {
		msg += fmt.Sprintf("- %s, $%.2f on %s (score %d/10): %s\n",
			misc.StringLimit(rec.Listing.Title, 60), rec.Listing.Price,
			rec.Listing.Marketplace, rec.Analysis.RelevanceScore, rec.Listing.URL)
	}
	return msg
}

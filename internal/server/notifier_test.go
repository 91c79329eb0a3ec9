package server

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"thriftwatch/internal/model"
)

func record(ss model.SavedSearch, id string, score int) model.SearchResultRecord {
	return model.SearchResultRecord{
		SearchID: ss.ID,
		OwnerID:  ss.OwnerID,
		Listing:  model.Listing{ExternalID: id, Title: "Item " + id, Price: 42, Marketplace: "depop", URL: "https://example.com/" + id},
		Analysis: model.AIAnalysisResult{RelevanceScore: score},
	}
}

func TestNotifyNewHighRelevanceCapsPerRun(t *testing.T) {
	ss := testSearch()
	store := &fakeNotificationStore{}
	mail := &fakeMail{}

	var records []model.SearchResultRecord
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		records = append(records, record(ss, id, 9))
	}

	created := notifyNewHighRelevance(context.Background(), store, mail, testLogger{t}, ss, records, 5)
	if created != 5 {
		t.Errorf("got %d notifications, want 5", created)
	}
	if len(store.inserted) != 5 {
		t.Errorf("got %d inserted, want 5", len(store.inserted))
	}
	for _, n := range store.inserted {
		if n.Type != model.NotificationTypeNewItem {
			t.Errorf("got notification type %q, want %q", n.Type, model.NotificationTypeNewItem)
		}
		if n.OwnerID != ss.OwnerID {
			t.Errorf("got owner %q, want %q", n.OwnerID, ss.OwnerID)
		}
		if n.Data.SearchID != ss.ID.Hex() {
			t.Errorf("got search id %q, want %q", n.Data.SearchID, ss.ID.Hex())
		}
	}
}

func TestNotifyNewHighRelevanceDisabled(t *testing.T) {
	ss := testSearch()
	ss.NotifyEnabled = false
	store := &fakeNotificationStore{}
	mail := &fakeMail{}

	created := notifyNewHighRelevance(context.Background(), store, mail, testLogger{t}, ss,
		[]model.SearchResultRecord{record(ss, "a", 9)}, 5)
	if created != 0 || len(store.inserted) != 0 {
		t.Errorf("got %d created, %d inserted, want none", created, len(store.inserted))
	}
}

func TestNotifyNewHighRelevanceInsertFailureIsIsolated(t *testing.T) {
	ss := testSearch()
	store := &fakeNotificationStore{failIDs: map[string]struct{}{"b": {}}}
	mail := &fakeMail{}

	records := []model.SearchResultRecord{
		record(ss, "a", 9),
		record(ss, "b", 9),
		record(ss, "c", 9),
	}
	created := notifyNewHighRelevance(context.Background(), store, mail, testLogger{t}, ss, records, 5)
	if created != 2 {
		t.Errorf("got %d created, want 2", created)
	}
}

func TestNotifyNewHighRelevanceEmail(t *testing.T) {
	ss := testSearch()
	ss.EmailEnabled = true
	store := &fakeNotificationStore{}
	mail := &fakeMail{}

	created := notifyNewHighRelevance(context.Background(), store, mail, testLogger{t}, ss,
		[]model.SearchResultRecord{record(ss, "a", 9)}, 5)
	if created != 1 {
		t.Fatalf("got %d created, want 1", created)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("got %d mails, want 1", len(mail.sent))
	}
	if mail.sent[0].RecipientID != ss.OwnerID {
		t.Errorf("got recipient %q, want %q", mail.sent[0].RecipientID, ss.OwnerID)
	}
	if !strings.Contains(mail.sent[0].Message, "https://example.com/a") {
		t.Errorf("mail message missing listing URL: %q", mail.sent[0].Message)
	}
}

func TestNotifyNewHighRelevanceEmailFailureDoesNotRollBack(t *testing.T) {
	ss := testSearch()
	ss.EmailEnabled = true
	store := &fakeNotificationStore{}
	mail := &fakeMail{err: errors.New("delivery down")}

	created := notifyNewHighRelevance(context.Background(), store, mail, testLogger{t}, ss,
		[]model.SearchResultRecord{record(ss, "a", 9)}, 5)
	if created != 1 {
		t.Errorf("got %d created, want 1", created)
	}
	if len(store.inserted) != 1 {
		t.Errorf("got %d inserted, want 1", len(store.inserted))
	}
}

func TestNotifyPriceDrops(t *testing.T) {
	ss := testSearch()
	store := &fakeNotificationStore{}

	drops := []priceDrop{
		{record: record(ss, "a", 9), oldPrice: 80},
		{record: record(ss, "b", 7), oldPrice: 55},
	}
	created := notifyPriceDrops(context.Background(), store, testLogger{t}, ss, drops, 5)
	if created != 2 {
		t.Fatalf("got %d created, want 2", created)
	}
	n := store.inserted[0]
	if n.Type != model.NotificationTypePriceDrop {
		t.Errorf("got notification type %q, want %q", n.Type, model.NotificationTypePriceDrop)
	}
	if n.Data.OldPrice != 80 || n.Data.Price != 42 {
		t.Errorf("got old price %v, price %v, want 80 and 42", n.Data.OldPrice, n.Data.Price)
	}
	if n.Data.ItemID != "a" || n.Data.SearchID != ss.ID.Hex() {
		t.Errorf("got item %q, search %q, want %q and %q", n.Data.ItemID, n.Data.SearchID, "a", ss.ID.Hex())
	}
	if !strings.Contains(n.Message, "Price drop") {
		t.Errorf("unexpected message: %q", n.Message)
	}
}

func TestNotifyPriceDropsCapsPerRun(t *testing.T) {
	ss := testSearch()
	store := &fakeNotificationStore{}

	var drops []priceDrop
	for _, id := range []string{"a", "b", "c", "d"} {
		drops = append(drops, priceDrop{record: record(ss, id, 9), oldPrice: 100})
	}
	if created := notifyPriceDrops(context.Background(), store, testLogger{t}, ss, drops, 3); created != 3 {
		t.Errorf("got %d created, want 3", created)
	}
}

func TestNotifyPriceDropsDisabled(t *testing.T) {
	ss := testSearch()
	ss.NotifyEnabled = false
	store := &fakeNotificationStore{}

	created := notifyPriceDrops(context.Background(), store, testLogger{t}, ss,
		[]priceDrop{{record: record(ss, "a", 9), oldPrice: 80}}, 5)
	if created != 0 || len(store.inserted) != 0 {
		t.Errorf("got %d created, %d inserted, want none", created, len(store.inserted))
	}
}

func TestNotifyNewHighRelevanceNoRecords(t *testing.T) {
	ss := testSearch()
	created := notifyNewHighRelevance(context.Background(), &fakeNotificationStore{}, &fakeMail{}, testLogger{t}, ss, nil, 5)
	if created != 0 {
		t.Errorf("got %d created, want 0", created)
	}
}

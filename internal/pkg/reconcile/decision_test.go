package reconcile

import (
	"testing"

	"github.com/paywise/tiersync/internal/pkg/entitlements"
)

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		eventType string
		want      EventClass
	}{
		{EventSubscriptionCreated, ClassSubscriptionChange},
		{EventSubscriptionUpdated, ClassSubscriptionChange},
		{"  Customer.Subscription.Updated  ", ClassSubscriptionChange},
		{EventSubscriptionDeleted, ClassCancellation},
		{EventInvoicePaymentSucceeded, ClassInvoicePaid},
		{EventInvoicePaymentFailed, ClassInvoiceFailed},
		{EventCustomerCreated, ClassCustomerCreated},
		{"charge.refunded", ClassUnknown},
		{"", ClassUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyEvent(tt.eventType); got != tt.want {
			t.Fatalf("ClassifyEvent(%q) = %v, want %v", tt.eventType, got, tt.want)
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		class        EventClass
		accountFound bool
		currentTier  entitlements.Tier
		want         Action
	}{
		{"subscription change applies", ClassSubscriptionChange, true, entitlements.TierFree, ActionApply},
		{"subscription change stages on miss", ClassSubscriptionChange, false, entitlements.TierFree, ActionStage},
		{"subscription change skips admin", ClassSubscriptionChange, true, entitlements.TierAdmin, ActionSkipAdmin},
		{"cancellation applies", ClassCancellation, true, entitlements.TierPremiumMax, ActionApply},
		{"cancellation ignored on miss", ClassCancellation, false, entitlements.TierFree, ActionIgnore},
		{"cancellation skips admin", ClassCancellation, true, entitlements.TierAdmin, ActionSkipAdmin},
		{"invoice paid records", ClassInvoicePaid, true, entitlements.TierPremium, ActionRecordOnly},
		{"invoice paid ignored on miss", ClassInvoicePaid, false, entitlements.TierFree, ActionIgnore},
		{"invoice failed records even for admin", ClassInvoiceFailed, true, entitlements.TierAdmin, ActionRecordOnly},
		{"customer created links", ClassCustomerCreated, true, entitlements.TierFree, ActionLink},
		{"customer created ignored on miss", ClassCustomerCreated, false, entitlements.TierFree, ActionIgnore},
		{"unknown class ignored", ClassUnknown, true, entitlements.TierFree, ActionIgnore},
	}
	for _, tt := range tests {
		if got := Decide(tt.class, tt.accountFound, tt.currentTier); got != tt.want {
			t.Fatalf("%s: Decide(%v, %v, %q) = %v, want %v",
				tt.name, tt.class, tt.accountFound, tt.currentTier, got, tt.want)
		}
	}
}

package services

import (
	"errors"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
)

var guardEpoch = time.Date(2024, 6, 11, 14, 0, 0, 0, time.UTC)

func TestEmailGuard_RateLimit(t *testing.T) {
	guard := NewEmailGuard(DefaultGuardConfig())

	for i := 0; i < 10; i++ {
		now := guardEpoch.Add(time.Duration(i) * time.Minute)
		fp := Fingerprint("subject", "body", []string{string(rune('a' + i))})
		if err := guard.Check(fp, now); err != nil {
			t.Fatalf("send %d rejected: %v", i+1, err)
		}
		guard.Record(fp, now)
	}

	err := guard.Check("eleventh", guardEpoch.Add(10*time.Minute))
	if !errors.Is(err, apperrors.ErrRateLimited) {
		t.Fatalf("Check() = %v, want ErrRateLimited", err)
	}

	// First record leaves the window one hour after it was written
	if err := guard.Check("eleventh", guardEpoch.Add(time.Hour+time.Second)); err != nil {
		t.Errorf("Check() after window = %v, want nil", err)
	}
}

func TestEmailGuard_Dedup(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{name: "resend after 10 minutes", elapsed: 10 * time.Minute, wantErr: apperrors.ErrDuplicate},
		{name: "resend after 29 minutes", elapsed: 29 * time.Minute, wantErr: apperrors.ErrDuplicate},
		{name: "resend after 31 minutes", elapsed: 31 * time.Minute, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := NewEmailGuard(DefaultGuardConfig())
			fp := Fingerprint("Daily report", "<p>hi</p>", []string{"ops@example.com"})
			guard.Record(fp, guardEpoch)

			err := guard.Check(fp, guardEpoch.Add(tt.elapsed))
			if tt.wantErr == nil && err != nil {
				t.Errorf("Check() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmailGuard_DifferentContentNotDuplicate(t *testing.T) {
	guard := NewEmailGuard(DefaultGuardConfig())
	guard.Record(Fingerprint("a", "body", []string{"x@example.com"}), guardEpoch)

	if !guard.MaySend(Fingerprint("b", "body", []string{"x@example.com"}), guardEpoch.Add(time.Minute)) {
		t.Error("MaySend() = false for a different subject")
	}
}

func TestEmailGuard_RecordsPruned(t *testing.T) {
	guard := NewEmailGuard(DefaultGuardConfig())
	guard.Record("old", guardEpoch)
	guard.Record("new", guardEpoch.Add(45*time.Minute))

	records := guard.Records(guardEpoch.Add(time.Hour))
	if len(records) != 1 || records[0].Fingerprint != "new" {
		t.Errorf("Records() = %+v, want only the recent record", records)
	}

	records[0].Fingerprint = "mutated"
	if guard.Records(guardEpoch.Add(time.Hour))[0].Fingerprint != "new" {
		t.Error("Records() should return a copy")
	}
}

func TestEmailGuard_CheckDoesNotRecord(t *testing.T) {
	guard := NewEmailGuard(DefaultGuardConfig())

	for i := 0; i < 20; i++ {
		if err := guard.Check("same", guardEpoch); err != nil {
			t.Fatalf("Check() #%d = %v, want nil", i, err)
		}
	}
	if n := len(guard.Records(guardEpoch)); n != 0 {
		t.Errorf("len(Records()) = %d, want 0", n)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("subject", "body", []string{"b@example.com", "a@example.com"})
	b := Fingerprint("subject", "body", []string{"a@example.com", "b@example.com"})
	if a != b {
		t.Error("Fingerprint() should not depend on recipient order")
	}
	if len(a) != 64 {
		t.Errorf("len(Fingerprint()) = %d, want 64 hex chars", len(a))
	}

	recipients := []string{"b@example.com", "a@example.com"}
	Fingerprint("subject", "body", recipients)
	if recipients[0] != "b@example.com" {
		t.Error("Fingerprint() must not reorder the caller's slice")
	}

	if Fingerprint("subject", "other", recipients) == a {
		t.Error("Fingerprint() should change with the body")
	}
}

func TestValidateAddresses(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "mixed input",
			input: []string{"a@b.co", " c@d.org ", "bad", "", "e@f"},
			want:  []string{"a@b.co", "c@d.org"},
		},
		{
			name:  "plus and dots",
			input: []string{"first.last+costs@mail.example.com"},
			want:  []string{"first.last+costs@mail.example.com"},
		},
		{
			name:  "single letter tld",
			input: []string{"user@example.c"},
			want:  []string{},
		},
		{
			name:  "nothing valid",
			input: []string{"   ", "@example.com"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateAddresses(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateAddresses() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmailGuard_ReserveAndRelease(t *testing.T) {
	guard := NewEmailGuard(DefaultGuardConfig())
	fp := Fingerprint("Daily report", "<p>hi</p>", []string{"ops@example.com"})

	if err := guard.Reserve(fp, guardEpoch); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if err := guard.Reserve(fp, guardEpoch); !errors.Is(err, apperrors.ErrDuplicate) {
		t.Fatalf("second Reserve() = %v, want ErrDuplicate", err)
	}

	guard.Release(fp, guardEpoch)
	if n := len(guard.Records(guardEpoch)); n != 0 {
		t.Fatalf("len(Records()) = %d after Release, want 0", n)
	}
	if err := guard.Reserve(fp, guardEpoch); err != nil {
		t.Errorf("Reserve() after Release = %v, want nil", err)
	}
}

func TestEmailGuard_ReleaseKeepsOtherRecords(t *testing.T) {
	guard := NewEmailGuard(DefaultGuardConfig())
	guard.Record("earlier", guardEpoch.Add(-time.Minute))
	if err := guard.Reserve("pending", guardEpoch); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	guard.Release("pending", guardEpoch.Add(time.Second))
	if n := len(guard.Records(guardEpoch)); n != 2 {
		t.Errorf("Release with another timestamp removed a record, have %d want 2", n)
	}

	guard.Release("pending", guardEpoch)
	records := guard.Records(guardEpoch)
	if len(records) != 1 || records[0].Fingerprint != "earlier" {
		t.Errorf("Records() = %+v, want only the earlier send", records)
	}
}

package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/pkg/types"
)

func uploadFixture() (*fakeStore, *fakeObjects, *Uploader) {
	store := newFakeStore()
	objects := newFakeObjects()
	return store, objects, NewUploader(store, store, objects, "memories", 5<<20)
}

func validRequest() *UploadRequest {
	return &UploadRequest{
		DisplayName: "Beach Day",
		Description: "sunset at the pier",
		DateTaken:   day("2024-06-01"),
		Location:    "Malibu",
		ContentType: "image/jpeg",
		Size:        1024,
		Data:        strings.NewReader("jpeg bytes"),
	}
}

func TestUploadWritesBothStores(t *testing.T) {
	store, objects, u := uploadFixture()

	res, err := u.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "beach_day_"))
	assert.True(t, strings.HasSuffix(res.Key, ".jpg"))
	assert.Contains(t, res.URL, res.Key)
	assert.Contains(t, objects.objects, res.Key)

	require.Len(t, store.details, 1)
	require.Len(t, store.timeline, 1)
	assert.Equal(t, res.TimelineID, store.details[0].TimelineID, "details record carries the timeline link")
	assert.Equal(t, res.URL, store.timeline[0].ImageURL, "timeline record carries the public url directly")
	assert.Equal(t, "Malibu", store.details[0].Location)
	assert.Equal(t, "June 1, 2024", store.timeline[0].Date)
}

func TestUploadThenReconcileRoundTrip(t *testing.T) {
	store, objects, u := uploadFixture()

	_, err := u.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	r := NewReconciler(store, store, objects, "memories", nil)
	snap, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Memories, 1, "one upload yields exactly one memory")
	m := snap.Memories[0]
	assert.Equal(t, "Beach Day", m.DisplayName)
	assert.Equal(t, "Malibu", m.Location)
	assert.True(t, m.HasImage())
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*UploadRequest)
		wantErr error
	}{
		{
			name:    "missing display name",
			mutate:  func(r *UploadRequest) { r.DisplayName = "  " },
			wantErr: types.ErrMissingDisplayName,
		},
		{
			name:    "missing date",
			mutate:  func(r *UploadRequest) { r.DateTaken = time.Time{} },
			wantErr: types.ErrMissingDate,
		},
		{
			name:    "unsupported type",
			mutate:  func(r *UploadRequest) { r.ContentType = "application/pdf" },
			wantErr: types.ErrUnsupportedImageType,
		},
		{
			name:    "too large",
			mutate:  func(r *UploadRequest) { r.Size = 6 << 20 },
			wantErr: types.ErrImageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, u := uploadFixture()
			req := validRequest()
			tt.mutate(req)

			_, err := u.Upload(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.details, "nothing is written on validation failure")
			assert.Empty(t, store.timeline)
		})
	}
}

func TestUploadBlobFailure(t *testing.T) {
	store, objects, u := uploadFixture()
	objects.failUpload = errors.New("storage unavailable")

	_, err := u.Upload(context.Background(), validRequest())
	var upErr *types.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "blob upload", upErr.Stage)
	assert.Empty(t, store.details)
}

func TestUploadCompensatesFailedTimelineWrite(t *testing.T) {
	store, _, u := uploadFixture()
	store.failInsert["timeline"] = errors.New("constraint violation")

	_, err := u.Upload(context.Background(), validRequest())
	var upErr *types.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "timeline write", upErr.Stage)

	assert.Empty(t, store.details, "details record is rolled back")
	require.Len(t, store.deletedDetails, 1)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Beach Day", "beach_day"},
		{"  Côte d'Azur!!  ", "c_te_d_azur"},
		{"already_clean", "already_clean"},
		{"Multiple   Spaces", "multiple_spaces"},
		{"2024 Trip", "2024_trip"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), "input %q", tt.in)
	}
}

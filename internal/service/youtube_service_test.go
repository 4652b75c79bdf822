package service

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type fakeYoutube struct {
	mu          sync.Mutex
	bearer      []string
	video       *youtube.Video
	playlist    *youtube.Playlist
	rejectCalls bool
}

func (f *fakeYoutube) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.URL.Path == "/token" {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			w.Header().Set("Content-Type", "application/json")
			if r.PostForm.Get("refresh_token") == "revoked" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600}`))
			return
		}

		f.bearer = append(f.bearer, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if f.rejectCalls {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials.","errors":[{"reason":"authError"}]}}`))
			return
		}

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"):
			f.video = decodeUploadMetadata(t, r)
			_, _ = w.Write([]byte(`{"id":"vid123"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/youtube/v3/playlists"):
			f.playlist = &youtube.Playlist{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(f.playlist))
			_, _ = w.Write([]byte(`{"id":"PL42"}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"):
			assert.Equal(t, "vid123", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"items":[{"id":"vid123","statistics":{"viewCount":"100","likeCount":"5","commentCount":"2"}}]}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/youtube/v3/playlists"):
			assert.Equal(t, "contentDetails", r.URL.Query().Get("part"))
			assert.Equal(t, longPlaylistID, r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"items":[{"id":"` + longPlaylistID + `","contentDetails":{"itemCount":7}}]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// decodeUploadMetadata reads the JSON part of a multipart/related upload.
func decodeUploadMetadata(t *testing.T, r *http.Request) *youtube.Video {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(mediaType, "multipart/"), "got %s", mediaType)

	part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
	require.NoError(t, err)

	var video youtube.Video
	require.NoError(t, json.NewDecoder(part).Decode(&video))
	return &video
}

func newYoutube(t *testing.T, f *fakeYoutube, creds CredentialStore, media MediaFetcher) *youtubeService {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	yt := NewYoutubeService(config.Config{GoogleClientID: "cid", GoogleClientSecret: "csecret"}, creds, media,
		option.WithEndpoint(srv.URL+"/")).(*youtubeService)
	yt.oauth.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	return yt
}

func videoFetcher() *fakeFetcher {
	return &fakeFetcher{files: map[string]fakeMedia{
		"https://cdn.example.com/v.mp4": {kind: models.MediaKindVideo, contentType: "video/mp4", data: "not-really-a-video"},
	}}
}

func TestYoutubeUploadRefreshesAndTruncates(t *testing.T) {
	f := &fakeYoutube{}
	creds := newFakeCredentialStore()
	yt := newYoutube(t, f, creds, videoFetcher())

	tags := make([]string, 40)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag%d", i)
	}

	item, err := yt.Publish(context.Background(), account("u1", models.PlatformYoutube), Content{
		Caption:     "caption",
		Title:       strings.Repeat("t", 150),
		Description: strings.Repeat("é", 6000),
		Tags:        tags,
		VideoURL:    "https://cdn.example.com/v.mp4",
		Visibility:  "unlisted",
	})
	require.NoError(t, err)
	assert.Equal(t, "vid123", item.RemoteID)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid123", item.URL)

	require.Len(t, creds.refreshed, 1)
	assert.Equal(t, "fresh-access", creds.refreshed[0].AccessToken)
	assert.NotNil(t, creds.refreshed[0].TokenExpiresAt)
	assert.Equal(t, []string{"Bearer fresh-access"}, f.bearer)

	require.NotNil(t, f.video)
	assert.Len(t, []rune(f.video.Snippet.Title), 100)
	assert.Len(t, []rune(f.video.Snippet.Description), 5000)
	assert.Len(t, f.video.Snippet.Tags, 30)
	assert.Equal(t, "unlisted", f.video.Status.PrivacyStatus)
}

func TestYoutubeProceedsWhenRefreshFails(t *testing.T) {
	f := &fakeYoutube{}
	creds := newFakeCredentialStore()
	yt := newYoutube(t, f, creds, videoFetcher())

	acc := account("u1", models.PlatformYoutube)
	acc.RefreshToken = "revoked"

	item, err := yt.Publish(context.Background(), acc, Content{Caption: "c", VideoURL: "https://cdn.example.com/v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "vid123", item.RemoteID)
	assert.Empty(t, creds.refreshed)
	assert.Equal(t, []string{"Bearer access-youtube"}, f.bearer)
	assert.Equal(t, "public", f.video.Status.PrivacyStatus)
	assert.Equal(t, "c", f.video.Snippet.Title)
}

func TestYoutubeWithoutVideoCreatesPlaylist(t *testing.T) {
	f := &fakeYoutube{}
	yt := newYoutube(t, f, newFakeCredentialStore(), &fakeFetcher{})

	item, err := yt.Publish(context.Background(), account("u1", models.PlatformYoutube), Content{Caption: "launch notes\nmore"})
	require.NoError(t, err)
	assert.Equal(t, "PL42", item.RemoteID)
	assert.Equal(t, "https://www.youtube.com/playlist?list=PL42", item.URL)

	require.NotNil(t, f.playlist)
	assert.Equal(t, "unlisted", f.playlist.Status.PrivacyStatus)
	assert.Equal(t, "launch notes", f.playlist.Snippet.Title)
}

func TestYoutubeRejectedCredentialNeedsReauth(t *testing.T) {
	f := &fakeYoutube{rejectCalls: true}
	yt := newYoutube(t, f, newFakeCredentialStore(), videoFetcher())

	_, err := yt.Publish(context.Background(), account("u1", models.PlatformYoutube), Content{Caption: "c", VideoURL: "https://cdn.example.com/v.mp4"})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.True(t, NeedsReauth(err))
}

func TestYoutubeRefreshTokenInvalidGrant(t *testing.T) {
	yt := newYoutube(t, &fakeYoutube{}, newFakeCredentialStore(), &fakeFetcher{})

	acc := account("u1", models.PlatformYoutube)
	acc.RefreshToken = "revoked"

	err := yt.RefreshToken(context.Background(), acc)
	require.Error(t, err)
	assert.True(t, NeedsReauth(err))
	assert.Equal(t, "access-youtube", acc.AccessToken)
}

func TestYoutubeFetchMetrics(t *testing.T) {
	f := &fakeYoutube{}
	yt := newYoutube(t, f, newFakeCredentialStore(), &fakeFetcher{})

	counters, err := yt.FetchMetrics(context.Background(), account("u1", models.PlatformYoutube), "vid123")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"views": 100, "likes": 5, "comments": 2}, counters)
}

const longPlaylistID = "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf"

func TestYoutubeFetchPlaylistMetrics(t *testing.T) {
	f := &fakeYoutube{}
	yt := newYoutube(t, f, newFakeCredentialStore(), &fakeFetcher{})

	counters, err := yt.FetchMetrics(context.Background(), account("u1", models.PlatformYoutube), longPlaylistID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"items": 7}, counters)
}

func TestIsPlaylistID(t *testing.T) {
	assert.True(t, isPlaylistID(longPlaylistID))
	assert.False(t, isPlaylistID("vid123"))
	assert.False(t, isPlaylistID("PLx4a9_Qz0c"))
}

func TestYoutubeRequiresCredential(t *testing.T) {
	yt := newYoutube(t, &fakeYoutube{}, newFakeCredentialStore(), &fakeFetcher{})

	_, err := yt.Publish(context.Background(), &models.SocialAccount{UserID: "u1"}, Content{Caption: "c"})
	assert.Equal(t, KindAuth, KindOf(err))
}

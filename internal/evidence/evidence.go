/*
Copyright 2025 Taco Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package evidence fetches proof-of-engagement from the platforms users post
// on. Verification and reconciliation never trust client-submitted state; they
// ask a Provider whether the comment is still live on the platform.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Comment is a single live comment on a video as reported by the platform.
type Comment struct {
	CommentID string `json:"comment_id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
}

// CommentCheck is the outcome of looking up one comment by its URL.
// Exists false with a nil error means the platform answered and the comment
// is gone; transport failures are returned as errors instead.
type CommentCheck struct {
	CommentID string `json:"comment_id"`
	Text      string `json:"text"`
	Exists    bool   `json:"exists"`
}

// Metrics are the public engagement counters of a video.
type Metrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// Provider answers questions about live platform state.
type Provider interface {
	CheckComment(ctx context.Context, commentURL string) (*CommentCheck, error)
	ListComments(ctx context.Context, videoURL string) ([]Comment, error)
	VideoMetrics(ctx context.Context, videoURL string) (*Metrics, error)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options tunes the TikTok provider. Zero values fall back to defaults.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Throttle is the minimum spacing between outbound requests. The
	// platform rate-limits aggressively; reconciliation batches go through
	// a single provider so this gate applies process-wide.
	Throttle   time.Duration
	MaxRetries uint64
}

// TikTokProvider scrapes the public video page and reads the JSON blobs the
// page embeds for client-side rendering. The page markup changes often; only
// the embedded JSON shape is depended on here.
type TikTokProvider struct {
	client     *http.Client
	userAgent  string
	throttle   time.Duration
	maxRetries uint64

	mu     sync.Mutex
	nextAt time.Time
}

func NewTikTokProvider(opts Options) *TikTokProvider {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Throttle == 0 {
		opts.Throttle = 2 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &TikTokProvider{
		client:     &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		throttle:   opts.Throttle,
		maxRetries: opts.MaxRetries,
	}
}

// embedded JSON payload shape shared by comment and stats blobs.
type pagePayload struct {
	Comments []struct {
		CID  string `json:"cid"`
		Text string `json:"text"`
		User struct {
			UID string `json:"uid"`
		} `json:"user"`
	} `json:"comments"`
	Stats *struct {
		PlayCount    json.Number `json:"playCount"`
		DiggCount    json.Number `json:"diggCount"`
		CommentCount json.Number `json:"commentCount"`
		ShareCount   json.Number `json:"shareCount"`
	} `json:"stats"`
}

var scriptJSONRe = regexp.MustCompile(`(?s)<script[^>]+type="application/json"[^>]*>(.*?)</script>`)

// ParseCommentURL splits a comment permalink into its video and comment IDs.
// Expected form: https://www.tiktok.com/@user/video/<video_id>?comment_id=<cid>
func ParseCommentURL(commentURL string) (videoID, commentID string, err error) {
	u, err := url.Parse(commentURL)
	if err != nil {
		return "", "", errors.Wrap(err, "invalid comment url")
	}
	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	videoID = parts[len(parts)-1]
	commentID = u.Query().Get("comment_id")
	if videoID == "" || commentID == "" {
		return "", "", errors.New("comment url missing video or comment id")
	}
	return videoID, commentID, nil
}

func (p *TikTokProvider) CheckComment(ctx context.Context, commentURL string) (*CommentCheck, error) {
	_, commentID, err := ParseCommentURL(commentURL)
	if err != nil {
		return nil, err
	}

	payloads, err := p.fetchPage(ctx, commentURL)
	if err != nil {
		return nil, err
	}
	for _, pl := range payloads {
		for _, c := range pl.Comments {
			if c.CID == commentID {
				return &CommentCheck{CommentID: commentID, Text: c.Text, Exists: true}, nil
			}
		}
	}
	return &CommentCheck{CommentID: commentID, Exists: false}, nil
}

func (p *TikTokProvider) ListComments(ctx context.Context, videoURL string) ([]Comment, error) {
	payloads, err := p.fetchPage(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	var out []Comment
	for _, pl := range payloads {
		for _, c := range pl.Comments {
			out = append(out, Comment{CommentID: c.CID, Text: c.Text, AuthorID: c.User.UID})
		}
	}
	return out, nil
}

func (p *TikTokProvider) VideoMetrics(ctx context.Context, videoURL string) (*Metrics, error) {
	payloads, err := p.fetchPage(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	for _, pl := range payloads {
		if pl.Stats == nil {
			continue
		}
		return &Metrics{
			Views:    asInt64(pl.Stats.PlayCount),
			Likes:    asInt64(pl.Stats.DiggCount),
			Comments: asInt64(pl.Stats.CommentCount),
			Shares:   asInt64(pl.Stats.ShareCount),
		}, nil
	}
	return nil, errors.New("no stats payload on page")
}

// fetchPage downloads the page, honoring the throttle gate, and returns every
// embedded JSON blob that parses into the expected shape.
func (p *TikTokProvider) fetchPage(ctx context.Context, pageURL string) ([]pagePayload, error) {
	if err := p.waitThrottle(ctx); err != nil {
		return nil, err
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", p.userAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("platform returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("platform returned %d", resp.StatusCode))
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, errors.Wrap(err, "fetching platform page")
	}

	var payloads []pagePayload
	for _, m := range scriptJSONRe.FindAllSubmatch(body, -1) {
		var pl pagePayload
		if err := json.Unmarshal(m[1], &pl); err != nil {
			continue
		}
		if len(pl.Comments) > 0 || pl.Stats != nil {
			payloads = append(payloads, pl)
		}
	}
	return payloads, nil
}

// waitThrottle blocks until the per-provider spacing allows another request.
func (p *TikTokProvider) waitThrottle(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	wait := p.nextAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	p.nextAt = now.Add(wait + p.throttle)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func asInt64(n json.Number) int64 {
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return v
}

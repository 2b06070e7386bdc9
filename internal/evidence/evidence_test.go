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
package evidence

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

const commentPage = `<html><head></head><body>
<script type="application/json">{"comments":[{"cid":"987","text":"love this","user":{"uid":"u1"}},{"cid":"654","text":"great","user":{"uid":"u2"}}]}</script>
<script type="application/json">{"stats":{"playCount":1200,"diggCount":340,"commentCount":2,"shareCount":15}}</script>
</body></html>`

func newTestProvider() *TikTokProvider {
	p := NewTikTokProvider(Options{Throttle: time.Millisecond, Timeout: time.Second})
	httpmock.ActivateNonDefault(p.client)
	return p
}

func TestParseCommentURL(t *testing.T) {
	videoID, commentID, err := ParseCommentURL("https://www.tiktok.com/@someone/video/123456?comment_id=987")
	assert.NoError(t, err)
	assert.Equal(t, "123456", videoID)
	assert.Equal(t, "987", commentID)

	_, _, err = ParseCommentURL("https://www.tiktok.com/@someone/video/123456")
	assert.Error(t, err)
}

func TestCheckCommentFound(t *testing.T) {
	p := newTestProvider()
	defer httpmock.DeactivateAndReset()

	url := "https://www.tiktok.com/@someone/video/123456?comment_id=987"
	httpmock.RegisterResponder("GET", url,
		httpmock.NewStringResponder(http.StatusOK, commentPage))

	check, err := p.CheckComment(context.Background(), url)
	assert.NoError(t, err)
	assert.True(t, check.Exists)
	assert.Equal(t, "987", check.CommentID)
	assert.Equal(t, "love this", check.Text)
}

func TestCheckCommentDeleted(t *testing.T) {
	p := newTestProvider()
	defer httpmock.DeactivateAndReset()

	url := "https://www.tiktok.com/@someone/video/123456?comment_id=111"
	httpmock.RegisterResponder("GET", url,
		httpmock.NewStringResponder(http.StatusOK, commentPage))

	check, err := p.CheckComment(context.Background(), url)
	assert.NoError(t, err)
	assert.False(t, check.Exists)
	assert.Equal(t, "111", check.CommentID)
}

func TestListComments(t *testing.T) {
	p := newTestProvider()
	defer httpmock.DeactivateAndReset()

	url := "https://www.tiktok.com/@someone/video/123456"
	httpmock.RegisterResponder("GET", url,
		httpmock.NewStringResponder(http.StatusOK, commentPage))

	comments, err := p.ListComments(context.Background(), url)
	assert.NoError(t, err)
	assert.Len(t, comments, 2)
	assert.Equal(t, "987", comments[0].CommentID)
	assert.Equal(t, "u2", comments[1].AuthorID)
}

func TestVideoMetrics(t *testing.T) {
	p := newTestProvider()
	defer httpmock.DeactivateAndReset()

	url := "https://www.tiktok.com/@someone/video/123456"
	httpmock.RegisterResponder("GET", url,
		httpmock.NewStringResponder(http.StatusOK, commentPage))

	metrics, err := p.VideoMetrics(context.Background(), url)
	assert.NoError(t, err)
	assert.Equal(t, int64(1200), metrics.Views)
	assert.Equal(t, int64(340), metrics.Likes)
	assert.Equal(t, int64(2), metrics.Comments)
	assert.Equal(t, int64(15), metrics.Shares)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	p := newTestProvider()
	defer httpmock.DeactivateAndReset()

	url := "https://www.tiktok.com/@someone/video/123456"
	calls := 0
	httpmock.RegisterResponder("GET", url,
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusInternalServerError, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, commentPage), nil
		})

	comments, err := p.ListComments(context.Background(), url)
	assert.NoError(t, err)
	assert.Len(t, comments, 2)
	assert.Equal(t, 2, calls)
}

func TestFetchPageNotFoundIsPermanent(t *testing.T) {
	p := newTestProvider()
	defer httpmock.DeactivateAndReset()

	url := "https://www.tiktok.com/@someone/video/999"
	httpmock.RegisterResponder("GET", url,
		httpmock.NewStringResponder(http.StatusNotFound, ""))

	_, err := p.ListComments(context.Background(), url)
	assert.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

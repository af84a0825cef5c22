package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"music-action-service/internal/catalog"
)

const (
	maxSearchResults = 25
	videosPerRequest = 50
)

// YouTubeClient searches and resolves tracks through the YouTube Data API.
// Track ids are video ids.
type YouTubeClient struct {
	apiKey    string
	searchURL string
	http      *http.Client
}

func NewYouTubeClient(apiKey, searchURL string) *YouTubeClient {
	return &YouTubeClient{
		apiKey:    apiKey,
		searchURL: searchURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type ytSnippet struct {
	Title        string   `json:"title"`
	ChannelTitle string   `json:"channelTitle"`
	PublishedAt  string   `json:"publishedAt"`
	Tags         []string `json:"tags"`
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID             string    `json:"id"`
		Snippet        ytSnippet `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (c *YouTubeClient) SearchTracks(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	val := url.Values{}
	val.Set("part", "snippet")
	val.Set("type", "video")
	val.Set("videoCategoryId", "10") // Music
	val.Set("maxResults", strconv.Itoa(limit))
	val.Set("q", query)
	val.Set("key", c.apiKey)

	var body ytSearchResponse
	if err := c.get(ctx, c.searchURL, val, &body); err != nil {
		return nil, err
	}

	out := make([]catalog.Track, 0, len(body.Items))
	ids := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		if it.ID.VideoID == "" {
			continue
		}
		out = append(out, snippetTrack(it.ID.VideoID, it.Snippet))
		ids = append(ids, it.ID.VideoID)
	}

	if len(ids) > 0 {
		details, err := c.videos(ctx, ids)
		if err != nil {
			// results are still usable without durations
			log.Printf("music-action-service: youtube fetch durations: %v", err)
			return out, nil
		}
		for i := range out {
			if d, ok := details[out[i].ID]; ok {
				out[i].DurationMs = d.DurationMs
				out[i].Popularity = d.Popularity
			}
		}
	}
	return out, nil
}

// Tracks resolves video ids, leaving out the ones YouTube does not return.
func (c *YouTubeClient) Tracks(ctx context.Context, ids []string) ([]catalog.Track, error) {
	found := make(map[string]catalog.Track, len(ids))
	for start := 0; start < len(ids); start += videosPerRequest {
		chunk := ids[start:min(start+videosPerRequest, len(ids))]
		details, err := c.videos(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for id, t := range details {
			found[id] = t
		}
	}
	out := make([]catalog.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := found[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *YouTubeClient) videos(ctx context.Context, ids []string) (map[string]catalog.Track, error) {
	val := url.Values{}
	val.Set("part", "snippet,contentDetails,statistics")
	val.Set("id", strings.Join(ids, ","))
	val.Set("key", c.apiKey)

	var body ytVideosResponse
	if err := c.get(ctx, c.videosURL(), val, &body); err != nil {
		return nil, err
	}

	out := make(map[string]catalog.Track, len(body.Items))
	for _, item := range body.Items {
		t := snippetTrack(item.ID, item.Snippet)
		t.DurationMs = parseISO8601Duration(item.ContentDetails.Duration)
		t.Popularity = popularity(item.Statistics.ViewCount)
		out[item.ID] = t
	}
	return out, nil
}

// videosURL derives the videos endpoint from the configured search endpoint.
func (c *YouTubeClient) videosURL() string {
	if base, ok := strings.CutSuffix(c.searchURL, "/search"); ok {
		return base + "/videos"
	}
	return "https://www.googleapis.com/youtube/v3/videos"
}

func (c *YouTubeClient) get(ctx context.Context, endpoint string, val url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+val.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func snippetTrack(id string, s ytSnippet) catalog.Track {
	t := catalog.Track{
		ID:      id,
		Name:    s.Title,
		Artists: []string{strings.TrimSuffix(s.ChannelTitle, " - Topic")},
		Genres:  s.Tags,
		URI:     "https://www.youtube.com/watch?v=" + url.QueryEscape(id),
	}
	if ts, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
		t.Year = ts.Year()
	}
	return t
}

// popularity maps a view count onto 0..100 by order of magnitude, so a
// billion views scores 90 and a thousand scores 30.
func popularity(views string) int {
	n, err := strconv.ParseUint(views, 10, 64)
	if err != nil || n == 0 {
		return 0
	}
	digits := len(strconv.FormatUint(n, 10))
	return min((digits-1)*10, 100)
}

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration converts PT#H#M#S durations to milliseconds. Anything
// else, including day components, yields 0.
func parseISO8601Duration(duration string) int {
	m := isoDuration.FindStringSubmatch(duration)
	if m == nil {
		return 0
	}
	var h, mins, s int
	fmt.Sscanf(m[1], "%d", &h)
	fmt.Sscanf(m[2], "%d", &mins)
	fmt.Sscanf(m[3], "%d", &s)
	return (h*3600 + mins*60 + s) * 1000
}

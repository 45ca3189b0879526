package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dghubble/oauth1"

	"github.com/zelfhosted/server/tool"
)

var twitterAPIURL = "https://api.twitter.com/2/tweets"

const tweetMaxLength = 280

// TweetTool posts to X (Twitter) via the v2 API with OAuth 1.0a user-context
// authentication.
type TweetTool struct {
	*tool.FunctionTool
	cfg    Config
	client *http.Client
}

// NewTweetTool creates the posting tool. The OAuth signing client is built
// once here; missing credentials are caught per call and surface as result
// text instead of a startup failure.
func NewTweetTool(cfg Config) *TweetTool {
	oauthCfg := oauth1.NewConfig(cfg.TwitterAPIKey, cfg.TwitterAPISecret)
	token := oauth1.NewToken(cfg.TwitterAccessToken, cfg.TwitterAccessSecret)
	client := oauthCfg.Client(oauth1.NoContext, token)
	client.Timeout = slowClient.Timeout

	t := &TweetTool{cfg: cfg, client: client}
	t.FunctionTool = tool.NewFunctionTool(
		"post_tweet",
		"Post a tweet to Twitter/X. The text is the tweet content (max 280 characters).",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The tweet content (max 280 characters)",
				},
			},
			"required": []string{"text"},
		},
		t.post,
	)
	return t
}

func (t *TweetTool) missingCredentials() []string {
	var missing []string
	if t.cfg.TwitterAPIKey == "" {
		missing = append(missing, "X_API_KEY")
	}
	if t.cfg.TwitterAPISecret == "" {
		missing = append(missing, "X_API_SECRET")
	}
	if t.cfg.TwitterAccessToken == "" {
		missing = append(missing, "X_API_AUTH_ACCESS_TOKEN")
	}
	if t.cfg.TwitterAccessSecret == "" {
		missing = append(missing, "X_API_AUTH_ACCESS_SECRET")
	}
	return missing
}

func (t *TweetTool) post(ctx context.Context, args map[string]any) (string, error) {
	text, _ := args["text"].(string)

	if n := utf8.RuneCountInString(text); n > tweetMaxLength {
		return fmt.Sprintf("Error: Tweet exceeds %d character limit (%d characters provided)", tweetMaxLength, n), nil
	}
	if missing := t.missingCredentials(); len(missing) > 0 {
		return fmt.Sprintf("Error: Missing required environment variables: %s", strings.Join(missing, ", ")), nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, twitterAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error connecting to Twitter API: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Sprintf("Error posting tweet: %d - %s", resp.StatusCode, string(raw)), nil
	}

	var decoded struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Sprintf("Error posting tweet: %v", err), nil
	}
	return fmt.Sprintf("Tweet posted successfully!\nTweet ID: %s\nURL: https://twitter.com/i/web/status/%s",
		decoded.Data.ID, decoded.Data.ID), nil
}

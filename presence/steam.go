package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skik4/cs2-casual-enjoyer-sub000/config"
	"github.com/skik4/cs2-casual-enjoyer-sub000/metrics"
)

// SteamClient implements Client against the Steam Web API.
type SteamClient struct {
	cfg        *config.SteamConfig
	httpClient *http.Client
	cache      Cache
}

// NewSteamClient creates a Steam Web API presence client. The cache may be
// nil, in which case name/avatar backfill is disabled.
func NewSteamClient(cfg *config.SteamConfig, cache Cache) *SteamClient {
	return &SteamClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		cache: cache,
	}
}

type playerSummary struct {
	SteamID           string `json:"steamid"`
	PersonaName       string `json:"personaname"`
	AvatarFull        string `json:"avatarfull"`
	GameID            string `json:"gameid"`
	GameServerSteamID string `json:"gameserversteamid"`
}

type playerSummariesResponse struct {
	Response struct {
		Players []playerSummary `json:"players"`
	} `json:"response"`
}

type richPresence struct {
	Status  string `json:"status"`
	Connect string `json:"connect"`
}

type richPresenceResponse struct {
	Response struct {
		RichPresence richPresence `json:"rich_presence"`
	} `json:"response"`
}

// getJSON performs a GET with constant-backoff retry and decodes the body
// into out. Non-2xx responses count as retryable failures: the Steam API
// sporadically returns 500s under load.
func (c *SteamClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("key", c.cfg.APIKey)
	endpoint := fmt.Sprintf("%s%s?%s", c.cfg.APIBaseURL, path, params.Encode())

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("steam api returned %d for %s", resp.StatusCode, path)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	backoffStrategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(time.Duration(c.cfg.RetryBackoff)*time.Millisecond),
			uint64(c.cfg.MaxRetries),
		),
		ctx,
	)

	err := backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Warnf("Retrying steam api call %s: %v (next attempt in %s)", path, err, d)
	})
	if err != nil {
		metrics.PresenceQueryErrors.Inc()
	}
	return err
}

func (c *SteamClient) playerSummaries(ctx context.Context, ids []string) ([]playerSummary, error) {
	params := url.Values{}
	params.Set("steamids", strings.Join(ids, ","))

	var decoded playerSummariesResponse
	if err := c.getJSON(ctx, "/ISteamUser/GetPlayerSummaries/v0002/", params, &decoded); err != nil {
		return nil, fmt.Errorf("player summaries request failed: %w", err)
	}
	return decoded.Response.Players, nil
}

func (c *SteamClient) playerSummary(ctx context.Context, id string) (*playerSummary, error) {
	players, err := c.playerSummaries(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, nil
	}
	return &players[0], nil
}

func (c *SteamClient) richPresence(ctx context.Context, id string) (richPresence, error) {
	params := url.Values{}
	params.Set("steamid", id)
	params.Set("appid", c.cfg.AppID)

	var decoded richPresenceResponse
	if err := c.getJSON(ctx, "/ISteamUser/GetFriendRichPresence/v1/", params, &decoded); err != nil {
		return richPresence{}, fmt.Errorf("rich presence request failed: %w", err)
	}
	return decoded.Response.RichPresence, nil
}

// inSupportedMode classifies a rich-presence status string. The match rules
// come from config because the status strings are an undocumented part of the
// game client and change between updates.
func (c *SteamClient) inSupportedMode(status string) bool {
	return containsAny(status, c.cfg.SupportedModes)
}

func (c *SteamClient) inLobbyState(status string) bool {
	return containsAny(status, c.cfg.LobbyStates)
}

func containsAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// FriendConnectInfo returns the friend's connect token from rich presence,
// or "" when the friend is not in a joinable match.
func (c *SteamClient) FriendConnectInfo(ctx context.Context, friendID string) (string, error) {
	rp, err := c.richPresence(ctx, friendID)
	if err != nil {
		return "", err
	}
	return rp.Connect, nil
}

// FriendStatuses resolves presence for the given friends. Name and avatar
// fields are written through to the cache on success; when the summaries call
// fails entirely, the cached snapshot (if any) is returned so callers keep
// rendering something sensible.
func (c *SteamClient) FriendStatuses(ctx context.Context, ids []string) ([]FriendStatus, error) {
	players, err := c.playerSummaries(ctx, ids)
	if err != nil {
		if cached := c.cachedStatuses(ctx, ids); len(cached) > 0 {
			log.Warnf("Serving %d friend statuses from cache after API failure: %v", len(cached), err)
			return cached, nil
		}
		return nil, err
	}

	statuses := make([]FriendStatus, 0, len(players))
	for _, p := range players {
		st := FriendStatus{
			ID:          p.SteamID,
			DisplayName: p.PersonaName,
			AvatarURL:   p.AvatarFull,
		}
		if p.GameID == c.cfg.AppID {
			rp, err := c.richPresence(ctx, p.SteamID)
			if err != nil {
				log.Warnf("Rich presence lookup failed for %s: %v", p.SteamID, err)
			} else {
				st.InSupportedMode = c.inSupportedMode(rp.Status)
			}
		}
		statuses = append(statuses, st)
		if c.cache != nil {
			if err := c.cache.Put(ctx, st); err != nil {
				log.Warnf("Failed to cache status for %s: %v", p.SteamID, err)
			}
		}
	}
	return statuses, nil
}

func (c *SteamClient) cachedStatuses(ctx context.Context, ids []string) []FriendStatus {
	if c.cache == nil {
		return nil
	}
	var statuses []FriendStatus
	for _, id := range ids {
		st, err := c.cache.Get(ctx, id)
		if err != nil || st == nil {
			continue
		}
		// A cached entry says nothing about the friend's current mode.
		st.InSupportedMode = false
		statuses = append(statuses, *st)
	}
	return statuses
}

// UserGameServerID returns the server the user is currently on, "" if none.
func (c *SteamClient) UserGameServerID(ctx context.Context, userID string) (string, error) {
	p, err := c.playerSummary(ctx, userID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}
	return p.GameServerSteamID, nil
}

// FriendGameServerID is the same lookup keyed by the friend's id.
func (c *SteamClient) FriendGameServerID(ctx context.Context, friendID string) (string, error) {
	return c.UserGameServerID(ctx, friendID)
}

// IsInGame reports whether the user currently has the game open.
func (c *SteamClient) IsInGame(ctx context.Context, userID string) (bool, error) {
	p, err := c.playerSummary(ctx, userID)
	if err != nil {
		return false, err
	}
	return p != nil && p.GameID == c.cfg.AppID, nil
}

// IsInGameAndInLobbyState reports whether the game is open and the user has
// reached a state the matchmaker can act on: rich presence is populated and
// no longer reports one of the configured pre-game lobby states.
func (c *SteamClient) IsInGameAndInLobbyState(ctx context.Context, userID string) (bool, error) {
	inGame, err := c.IsInGame(ctx, userID)
	if err != nil || !inGame {
		return false, err
	}
	rp, err := c.richPresence(ctx, userID)
	if err != nil {
		return false, err
	}
	return rp.Status != "" && !c.inLobbyState(rp.Status), nil
}

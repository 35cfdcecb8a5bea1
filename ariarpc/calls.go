package ariarpc

import (
	"context"
	"encoding/base64"

	"github.com/cenkalti/ariatop/internal/rpctypes"
)

// Position origins for ChangePosition.
const (
	PosSet = "POS_SET"
	PosCur = "POS_CUR"
	PosEnd = "POS_END"
)

// Keys requested by the dashboard. Asking only for what is displayed keeps poll responses small.
var StatusKeys = []string{
	"gid", "status", "totalLength", "completedLength", "uploadLength",
	"downloadSpeed", "uploadSpeed", "connections", "numSeeders", "seeder",
	"errorCode", "errorMessage", "followedBy", "following", "belongsTo",
	"dir", "files", "bittorrent", "infoHash", "verifiedLength",
	"pieceLength", "numPieces",
}

func keysParam(params []any, keys []string) []any {
	if len(keys) > 0 {
		params = append(params, keys)
	}
	return params
}

// addParams appends the optional options and position arguments of the add methods.
// The daemon takes them positionally, so options must be present when position is.
func addParams(params []any, options map[string]string, position *int) []any {
	if options != nil || position != nil {
		if options == nil {
			options = map[string]string{}
		}
		params = append(params, options)
	}
	if position != nil {
		params = append(params, *position)
	}
	return params
}

func (c *Client) AddURI(ctx context.Context, uris []string, options map[string]string, position *int) (string, error) {
	var gid string
	err := c.Call(ctx, AddURI, addParams([]any{uris}, options, position), &gid)
	return gid, err
}

func (c *Client) AddTorrent(ctx context.Context, torrent []byte, uris []string, options map[string]string, position *int) (string, error) {
	if uris == nil {
		uris = []string{}
	}
	params := []any{base64.StdEncoding.EncodeToString(torrent), uris}
	var gid string
	err := c.Call(ctx, AddTorrent, addParams(params, options, position), &gid)
	return gid, err
}

func (c *Client) AddMetalink(ctx context.Context, metalink []byte, options map[string]string, position *int) ([]string, error) {
	params := []any{base64.StdEncoding.EncodeToString(metalink)}
	var gids []string
	err := c.Call(ctx, AddMetalink, addParams(params, options, position), &gids)
	return gids, err
}

func (c *Client) gidCall(ctx context.Context, method, gid string) (string, error) {
	var reply string
	err := c.Call(ctx, method, []any{gid}, &reply)
	return reply, err
}

func (c *Client) okCall(ctx context.Context, method string) (string, error) {
	var reply string
	err := c.Call(ctx, method, nil, &reply)
	return reply, err
}

func (c *Client) Remove(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, Remove, gid)
}

func (c *Client) ForceRemove(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, ForceRemove, gid)
}

func (c *Client) Pause(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, Pause, gid)
}

func (c *Client) ForcePause(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, ForcePause, gid)
}

func (c *Client) Unpause(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, Unpause, gid)
}

func (c *Client) RemoveDownloadResult(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, RemoveDownloadResult, gid)
}

func (c *Client) PauseAll(ctx context.Context) (string, error) { return c.okCall(ctx, PauseAll) }

func (c *Client) ForcePauseAll(ctx context.Context) (string, error) {
	return c.okCall(ctx, ForcePauseAll)
}

func (c *Client) UnpauseAll(ctx context.Context) (string, error) { return c.okCall(ctx, UnpauseAll) }

func (c *Client) PurgeDownloadResult(ctx context.Context) (string, error) {
	return c.okCall(ctx, PurgeDownloadResult)
}

func (c *Client) SaveSession(ctx context.Context) (string, error) { return c.okCall(ctx, SaveSession) }

func (c *Client) Shutdown(ctx context.Context) (string, error) { return c.okCall(ctx, Shutdown) }

func (c *Client) ForceShutdown(ctx context.Context) (string, error) {
	return c.okCall(ctx, ForceShutdown)
}

func (c *Client) TellStatus(ctx context.Context, gid string, keys ...string) (*rpctypes.Status, error) {
	var reply rpctypes.Status
	return &reply, c.Call(ctx, TellStatus, keysParam([]any{gid}, keys), &reply)
}

func (c *Client) TellActive(ctx context.Context, keys ...string) ([]rpctypes.Status, error) {
	var reply []rpctypes.Status
	err := c.Call(ctx, TellActive, keysParam(nil, keys), &reply)
	return reply, err
}

func (c *Client) TellWaiting(ctx context.Context, offset, num int, keys ...string) ([]rpctypes.Status, error) {
	var reply []rpctypes.Status
	err := c.Call(ctx, TellWaiting, keysParam([]any{offset, num}, keys), &reply)
	return reply, err
}

func (c *Client) TellStopped(ctx context.Context, offset, num int, keys ...string) ([]rpctypes.Status, error) {
	var reply []rpctypes.Status
	err := c.Call(ctx, TellStopped, keysParam([]any{offset, num}, keys), &reply)
	return reply, err
}

func (c *Client) GetURIs(ctx context.Context, gid string) ([]rpctypes.URI, error) {
	var reply []rpctypes.URI
	err := c.Call(ctx, GetURIs, []any{gid}, &reply)
	return reply, err
}

func (c *Client) GetFiles(ctx context.Context, gid string) ([]rpctypes.File, error) {
	var reply []rpctypes.File
	err := c.Call(ctx, GetFiles, []any{gid}, &reply)
	return reply, err
}

// ChangePosition moves a waiting download in the queue and returns its new position.
func (c *Client) ChangePosition(ctx context.Context, gid string, pos int, how string) (int, error) {
	var reply int
	err := c.Call(ctx, ChangePosition, []any{gid, pos, how}, &reply)
	return reply, err
}

func (c *Client) GetOption(ctx context.Context, gid string) (rpctypes.Options, error) {
	var reply rpctypes.Options
	err := c.Call(ctx, GetOption, []any{gid}, &reply)
	return reply, err
}

func (c *Client) ChangeOption(ctx context.Context, gid string, options map[string]string) (string, error) {
	var reply string
	err := c.Call(ctx, ChangeOption, []any{gid, options}, &reply)
	return reply, err
}

func (c *Client) GetGlobalOption(ctx context.Context) (rpctypes.Options, error) {
	var reply rpctypes.Options
	err := c.Call(ctx, GetGlobalOption, nil, &reply)
	return reply, err
}

func (c *Client) ChangeGlobalOption(ctx context.Context, options map[string]string) (string, error) {
	var reply string
	err := c.Call(ctx, ChangeGlobalOption, []any{options}, &reply)
	return reply, err
}

func (c *Client) GetGlobalStat(ctx context.Context) (*rpctypes.GlobalStat, error) {
	var reply rpctypes.GlobalStat
	return &reply, c.Call(ctx, GetGlobalStat, nil, &reply)
}

func (c *Client) GetVersion(ctx context.Context) (*rpctypes.Version, error) {
	var reply rpctypes.Version
	return &reply, c.Call(ctx, GetVersion, nil, &reply)
}

func (c *Client) GetSessionInfo(ctx context.Context) (*rpctypes.SessionInfo, error) {
	var reply rpctypes.SessionInfo
	return &reply, c.Call(ctx, GetSessionInfo, nil, &reply)
}

func (c *Client) ListMethods(ctx context.Context) ([]string, error) {
	var reply []string
	err := c.Call(ctx, ListMethods, nil, &reply)
	return reply, err
}

func (c *Client) ListNotifications(ctx context.Context) ([]string, error) {
	var reply []string
	err := c.Call(ctx, ListNotifications, nil, &reply)
	return reply, err
}

// Package rpctypes contains the structs exchanged with the aria2 daemon, as they appear on the wire.
// aria2 reports all integers as decimal strings.
package rpctypes

type Status struct {
	GID                    string      `json:"gid"`
	Status                 string      `json:"status"`
	TotalLength            string      `json:"totalLength"`
	CompletedLength        string      `json:"completedLength"`
	UploadLength           string      `json:"uploadLength"`
	Bitfield               string      `json:"bitfield,omitempty"`
	DownloadSpeed          string      `json:"downloadSpeed"`
	UploadSpeed            string      `json:"uploadSpeed"`
	InfoHash               string      `json:"infoHash,omitempty"`
	NumSeeders             string      `json:"numSeeders,omitempty"`
	Seeder                 string      `json:"seeder,omitempty"`
	PieceLength            string      `json:"pieceLength,omitempty"`
	NumPieces              string      `json:"numPieces,omitempty"`
	Connections            string      `json:"connections"`
	ErrorCode              string      `json:"errorCode,omitempty"`
	ErrorMessage           string      `json:"errorMessage,omitempty"`
	FollowedBy             []string    `json:"followedBy,omitempty"`
	Following              string      `json:"following,omitempty"`
	BelongsTo              string      `json:"belongsTo,omitempty"`
	Dir                    string      `json:"dir"`
	Files                  []File      `json:"files"`
	BitTorrent             *BitTorrent `json:"bittorrent,omitempty"`
	VerifiedLength         string      `json:"verifiedLength,omitempty"`
	VerifyIntegrityPending string      `json:"verifyIntegrityPending,omitempty"`
}

type File struct {
	Index           string `json:"index"`
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
	Selected        string `json:"selected"`
	URIs            []URI  `json:"uris"`
}

type URI struct {
	URI    string `json:"uri"`
	Status string `json:"status"`
}

type BitTorrent struct {
	AnnounceList [][]string `json:"announceList,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	CreationDate *Time      `json:"creationDate,omitempty"`
	Mode         string     `json:"mode,omitempty"`
	Info         *struct {
		Name string `json:"name"`
	} `json:"info,omitempty"`
}

type GlobalStat struct {
	DownloadSpeed   string `json:"downloadSpeed"`
	UploadSpeed     string `json:"uploadSpeed"`
	NumActive       string `json:"numActive"`
	NumWaiting      string `json:"numWaiting"`
	NumStopped      string `json:"numStopped"`
	NumStoppedTotal string `json:"numStoppedTotal"`
}

type Version struct {
	Version         string   `json:"version"`
	EnabledFeatures []string `json:"enabledFeatures"`
}

type SessionInfo struct {
	SessionID string `json:"sessionId"`
}

// Options is the option dictionary returned by getOption and getGlobalOption.
type Options map[string]string

// Notification is a frame pushed by the daemon over the WebSocket connection.
type Notification struct {
	Version string               `json:"jsonrpc"`
	Method  string               `json:"method"`
	Params  []NotificationParams `json:"params"`
	Error   *Error               `json:"error,omitempty"`
}

type NotificationParams struct {
	GID string `json:"gid"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

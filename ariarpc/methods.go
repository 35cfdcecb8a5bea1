package ariarpc

import (
	"sort"
	"strings"
)

// Canonical method names of the aria2 JSON-RPC interface.
const (
	AddURI               = "aria2.addUri"
	AddTorrent           = "aria2.addTorrent"
	AddMetalink          = "aria2.addMetalink"
	Remove               = "aria2.remove"
	ForceRemove          = "aria2.forceRemove"
	Pause                = "aria2.pause"
	PauseAll             = "aria2.pauseAll"
	ForcePause           = "aria2.forcePause"
	ForcePauseAll        = "aria2.forcePauseAll"
	Unpause              = "aria2.unpause"
	UnpauseAll           = "aria2.unpauseAll"
	TellStatus           = "aria2.tellStatus"
	GetURIs              = "aria2.getUris"
	GetFiles             = "aria2.getFiles"
	GetPeers             = "aria2.getPeers"
	GetServers           = "aria2.getServers"
	TellActive           = "aria2.tellActive"
	TellWaiting          = "aria2.tellWaiting"
	TellStopped          = "aria2.tellStopped"
	ChangePosition       = "aria2.changePosition"
	ChangeURI            = "aria2.changeUri"
	GetOption            = "aria2.getOption"
	ChangeOption         = "aria2.changeOption"
	GetGlobalOption      = "aria2.getGlobalOption"
	ChangeGlobalOption   = "aria2.changeGlobalOption"
	GetGlobalStat        = "aria2.getGlobalStat"
	PurgeDownloadResult  = "aria2.purgeDownloadResult"
	RemoveDownloadResult = "aria2.removeDownloadResult"
	GetVersion           = "aria2.getVersion"
	GetSessionInfo       = "aria2.getSessionInfo"
	Shutdown             = "aria2.shutdown"
	ForceShutdown        = "aria2.forceShutdown"
	SaveSession          = "aria2.saveSession"
	Multicall            = "system.multicall"
	ListMethods          = "system.listMethods"
	ListNotifications    = "system.listNotifications"
)

// Methods is the catalog of every method the daemon exposes.
var Methods = []string{
	AddURI, AddTorrent, AddMetalink,
	Remove, ForceRemove,
	Pause, PauseAll, ForcePause, ForcePauseAll,
	Unpause, UnpauseAll,
	TellStatus, GetURIs, GetFiles, GetPeers, GetServers,
	TellActive, TellWaiting, TellStopped,
	ChangePosition, ChangeURI,
	GetOption, ChangeOption, GetGlobalOption, ChangeGlobalOption,
	GetGlobalStat, PurgeDownloadResult, RemoveDownloadResult,
	GetVersion, GetSessionInfo,
	Shutdown, ForceShutdown, SaveSession,
	Multicall, ListMethods, ListNotifications,
}

// Resolver maps loosely spelled method names onto a catalog of canonical names.
// "tellactive", "TELL_ACTIVE", "aria2.tell-active" all resolve to "aria2.tellActive".
type Resolver struct {
	full map[string][]string
	bare map[string][]string
}

// NewResolver indexes catalog. Each entry must have the form "namespace.verb".
func NewResolver(catalog []string) *Resolver {
	r := &Resolver{
		full: make(map[string][]string),
		bare: make(map[string][]string),
	}
	for _, m := range catalog {
		r.full[canonicalize(m)] = appendUnique(r.full[canonicalize(m)], m)
		if i := strings.IndexByte(m, '.'); i >= 0 {
			b := canonicalize(m[i+1:])
			r.bare[b] = appendUnique(r.bare[b], m)
		}
	}
	return r
}

// Resolve returns the single canonical method matching name.
// A namespace-qualified match takes precedence over a bare verb match.
func (r *Resolver) Resolve(name string) (string, error) {
	key := canonicalize(name)
	if key == "" {
		return "", &MethodError{Name: name}
	}
	for _, index := range []map[string][]string{r.full, r.bare} {
		candidates := index[key]
		switch len(candidates) {
		case 0:
			continue
		case 1:
			return candidates[0], nil
		default:
			c := append([]string(nil), candidates...)
			sort.Strings(c)
			return "", &MethodError{Name: name, Candidates: c}
		}
	}
	return "", &MethodError{Name: name}
}

var defaultResolver = NewResolver(Methods)

// ResolveMethod resolves name against the default catalog.
func ResolveMethod(name string) (string, error) {
	return defaultResolver.Resolve(name)
}

func canonicalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

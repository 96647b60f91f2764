// Package euri implements the EjfatURI connection descriptor: the persistent
// record of a control-plane endpoint, its bearer tokens, LB/session ids and
// dataplane/sync addresses, grounded on
// original_source/include/e2sarUtil.hpp's EjfatURI class.
//
// Grammar (spec.md §4.2):
//
//	ejfat[s]://[<token>@]<cphost>:<cpport>/[lb/<lbid>]
//	           [?data=<addr>[:<port>](&data=<addr>[:<port>])?
//	            &sync=<addr>:<port>
//	            &sessionid=<id>]
package euri

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
)

// DataplanePort is the default UDP port for the dataplane when none is given.
const DataplanePort = 19522

// TokenType selects which slot of the three-tier token model a bare <token>
// prefix in the URI (or a call to Token/SetToken) addresses.
type TokenType int

const (
	// Admin is the reservation/administrative token (alias: LoadBalancer).
	Admin TokenType = iota
	// Instance is the per-reservation token handed back by reserveLB.
	Instance
	// Session is the per-worker token handed back by registerWorker.
	Session

	numTokenTypes
)

func (t TokenType) String() string {
	switch t {
	case Admin:
		return "admin"
	case Instance:
		return "instance"
	case Session:
		return "session"
	default:
		return "unknown"
	}
}

// URI is the parsed/mutable form of an ejfat[s]:// connection descriptor.
// It is read-mostly: only LBManager mutates it, and only on the caller's
// thread before startup (spec.md §5).
type URI struct {
	useTLS   bool
	preferV6 bool

	cpHost string // hostname as given, empty if a literal IP was used
	cpAddr net.IP // resolved/literal CP address, may be nil if cpHost is a name
	cpPort uint16

	lbName string
	lbID   string

	tokens [numTokenTypes]string

	sessionID string

	haveSync bool
	syncAddr net.IP
	syncPort uint16

	haveDataV4 bool
	dataAddrV4 net.IP
	haveDataV6 bool
	dataAddrV6 net.IP
	dataPort   uint16
}

// Parse builds a URI from its string form. tt selects which token slot the
// bare <token>@ prefix, if present, is stored under. preferV6 controls which
// address family is preferred when the CP host must be resolved by name.
func Parse(rawURI string, tt TokenType, preferV6 bool) (*URI, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, e2sarerr.Wrap(e2sarerr.ParseError, "malformed URI", err)
	}

	result := &URI{preferV6: preferV6}

	switch u.Scheme {
	case "ejfat":
		result.useTLS = false
	case "ejfats":
		result.useTLS = true
	default:
		return nil, e2sarerr.Newf(e2sarerr.ParseError, "unsupported URI scheme %q, expected ejfat or ejfats", u.Scheme)
	}

	if u.Host == "" {
		return nil, e2sarerr.New(e2sarerr.ParseError, "URI missing control-plane host:port")
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil, e2sarerr.Wrap(e2sarerr.ParseError, "URI control-plane authority must be host:port", err)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return nil, err
	}
	result.cpPort = port
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		result.cpAddr = ip
	} else {
		result.cpHost = host
	}

	if u.User != nil {
		if tok := u.User.Username(); tok != "" {
			result.tokens[tt] = tok
		}
	}

	if path := strings.Trim(u.Path, "/"); path != "" {
		parts := strings.SplitN(path, "/", 2)
		if len(parts) == 2 && parts[0] == "lb" {
			result.lbID = parts[1]
		} else {
			return nil, e2sarerr.Newf(e2sarerr.ParseError, "unrecognized URI path %q, expected /lb/<id>", u.Path)
		}
	}

	q := u.Query()
	for _, d := range q["data"] {
		addr, port, err := splitAddrPort(d)
		if err != nil {
			return nil, e2sarerr.Wrap(e2sarerr.ParameterError, "bad data= address", err)
		}
		if port != 0 {
			result.dataPort = port
		}
		if addr.To4() != nil {
			result.dataAddrV4 = addr
			result.haveDataV4 = true
		} else {
			result.dataAddrV6 = addr
			result.haveDataV6 = true
		}
	}
	if result.dataPort == 0 && (result.haveDataV4 || result.haveDataV6) {
		result.dataPort = DataplanePort
	}

	if s := q.Get("sync"); s != "" {
		addr, port, err := splitAddrPort(s)
		if err != nil {
			return nil, e2sarerr.Wrap(e2sarerr.ParameterError, "bad sync= address", err)
		}
		if port == 0 {
			return nil, e2sarerr.New(e2sarerr.ParameterError, "sync= address requires a port")
		}
		result.syncAddr = addr
		result.syncPort = port
		result.haveSync = true
	}

	if sid := q.Get("sessionid"); sid != "" {
		result.sessionID = sid
	}

	return result, nil
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, e2sarerr.Wrapf(e2sarerr.ParameterError, "bad port %q", err, s)
	}
	return uint16(v), nil
}

func splitAddrPort(s string) (net.IP, uint16, error) {
	if strings.HasPrefix(s, "[") {
		closeIdx := strings.Index(s, "]")
		if closeIdx < 0 {
			return nil, 0, fmt.Errorf("unterminated [ in %q", s)
		}
		addrPart := s[1:closeIdx]
		ip := net.ParseIP(addrPart)
		if ip == nil {
			return nil, 0, fmt.Errorf("invalid address %q", addrPart)
		}
		rest := s[closeIdx+1:]
		if rest == "" {
			return ip, 0, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return nil, 0, fmt.Errorf("expected : after ] in %q", s)
		}
		port, err := strconv.ParseUint(rest[1:], 10, 16)
		if err != nil {
			return nil, 0, fmt.Errorf("bad port in %q: %w", s, err)
		}
		return ip, uint16(port), nil
	}

	// plain IPv4 or bare IPv6 (no brackets, no port) or IPv4:port.
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		if ip := net.ParseIP(s); ip != nil {
			// bare IPv6 without brackets and without a port.
			return ip, 0, nil
		}
		addrPart, portPart := s[:idx], s[idx+1:]
		ip := net.ParseIP(addrPart)
		if ip == nil {
			return nil, 0, fmt.Errorf("invalid address %q", addrPart)
		}
		port, err := strconv.ParseUint(portPart, 10, 16)
		if err != nil {
			return nil, 0, fmt.Errorf("bad port in %q: %w", s, err)
		}
		return ip, uint16(port), nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, 0, fmt.Errorf("invalid address %q", s)
	}
	return ip, 0, nil
}

// GetFromEnv reads envVar (defaulting to EJFAT_URI) and parses it.
func GetFromEnv(envVar string, tt TokenType, preferV6 bool) (*URI, error) {
	if envVar == "" {
		envVar = "EJFAT_URI"
	}
	val, ok := os.LookupEnv(envVar)
	if !ok {
		return nil, e2sarerr.Newf(e2sarerr.Undefined, "environment variable %s not defined", envVar)
	}
	return Parse(val, tt, preferV6)
}

// GetFromString is an alias for Parse kept to mirror the original API surface.
func GetFromString(uriStr string, tt TokenType, preferV6 bool) (*URI, error) {
	return Parse(uriStr, tt, preferV6)
}

// GetFromFile reads the first line of fileName (defaulting to /tmp/ejfat_uri)
// and parses it.
func GetFromFile(fileName string, tt TokenType, preferV6 bool) (*URI, error) {
	if fileName == "" {
		fileName = "/tmp/ejfat_uri"
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, e2sarerr.Newf(e2sarerr.NotFound, "unable to find file %s", fileName)
		}
		return nil, e2sarerr.Wrapf(e2sarerr.Undefined, "unable to read %s", err, fileName)
	}
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	if line == "" {
		return nil, e2sarerr.New(e2sarerr.Undefined, "unable to parse URI: file is empty")
	}
	return Parse(line, tt, preferV6)
}

// Token returns the token stored in slot tt, or ParameterNotAvailable if empty.
func (u *URI) Token(tt TokenType) (string, error) {
	tok := u.tokens[tt]
	if tok == "" {
		return "", e2sarerr.Newf(e2sarerr.ParameterNotAvailable, "%s token not available", tt)
	}
	return tok, nil
}

// SetToken stores tok in slot tt. Used by LBManager after reserveLB/registerWorker.
func (u *URI) SetToken(tt TokenType, tok string) { u.tokens[tt] = tok }

// LBName returns the load balancer name, if set during construction.
func (u *URI) LBName() string { return u.lbName }

// SetLBName records the LB name, used prior to a reserveLB call.
func (u *URI) SetLBName(name string) { u.lbName = name }

// LBID returns the load balancer id assigned by the control plane.
func (u *URI) LBID() string { return u.lbID }

// SetLBID records the LB id, used after a successful reserveLB.
func (u *URI) SetLBID(id string) { u.lbID = id }

// SessionID returns the worker's session id assigned by registerWorker.
func (u *URI) SessionID() string { return u.sessionID }

// SetSessionID records the session id, used after a successful registerWorker.
func (u *URI) SetSessionID(id string) { u.sessionID = id }

// UseTLS reports whether the URI scheme was ejfats.
func (u *URI) UseTLS() bool { return u.useTLS }

// CPHost returns the control-plane hostname and port, or ParameterNotAvailable
// if the CP was given as a literal address rather than a name.
func (u *URI) CPHost() (string, uint16, error) {
	if u.cpHost == "" {
		return "", 0, e2sarerr.New(e2sarerr.ParameterNotAvailable, "control plane hostname not available")
	}
	return u.cpHost, u.cpPort, nil
}

// CPAddr returns the control-plane address and port. If the URI was
// constructed from a DNS name this resolves it now, honoring preferV6.
func (u *URI) CPAddr() (net.IP, uint16, error) {
	if u.cpAddr != nil {
		return u.cpAddr, u.cpPort, nil
	}
	if u.cpHost == "" {
		return nil, 0, e2sarerr.New(e2sarerr.ParameterNotAvailable, "control plane address not available")
	}
	addrs, err := net.LookupIP(u.cpHost)
	if err != nil || len(addrs) == 0 {
		return nil, 0, e2sarerr.Wrapf(e2sarerr.NotFound, "unable to resolve %s", err, u.cpHost)
	}
	for _, a := range addrs {
		is4 := a.To4() != nil
		if u.preferV6 == !is4 {
			return a, u.cpPort, nil
		}
	}
	return addrs[0], u.cpPort, nil
}

// HasDataAddrV4 reports whether an IPv4 data address was supplied.
func (u *URI) HasDataAddrV4() bool { return u.haveDataV4 }

// HasDataAddrV6 reports whether an IPv6 data address was supplied.
func (u *URI) HasDataAddrV6() bool { return u.haveDataV6 }

// HasDataAddr reports whether any data address was supplied.
func (u *URI) HasDataAddr() bool { return u.haveDataV4 || u.haveDataV6 }

// HasSyncAddr reports whether a sync address was supplied.
func (u *URI) HasSyncAddr() bool { return u.haveSync }

// DataAddrV4 returns the IPv4 data address and port.
func (u *URI) DataAddrV4() (net.IP, uint16, error) {
	if !u.haveDataV4 {
		return nil, 0, e2sarerr.New(e2sarerr.ParameterNotAvailable, "data plane v4 address not available")
	}
	return u.dataAddrV4, u.dataPort, nil
}

// DataAddrV6 returns the IPv6 data address and port.
func (u *URI) DataAddrV6() (net.IP, uint16, error) {
	if !u.haveDataV6 {
		return nil, 0, e2sarerr.New(e2sarerr.ParameterNotAvailable, "data plane v6 address not available")
	}
	return u.dataAddrV6, u.dataPort, nil
}

// SyncAddr returns the sync address and port.
func (u *URI) SyncAddr() (net.IP, uint16, error) {
	if !u.haveSync {
		return nil, 0, e2sarerr.New(e2sarerr.ParameterNotAvailable, "sync address not available")
	}
	return u.syncAddr, u.syncPort, nil
}

// SetDataAddr records a dataplane address (v4 or v6, detected from the IP
// itself) and its port. Used by LBManager after a successful reserveLB.
func (u *URI) SetDataAddr(addr net.IP, port uint16) {
	u.dataPort = port
	if addr.To4() != nil {
		u.dataAddrV4 = addr
		u.haveDataV4 = true
	} else {
		u.dataAddrV6 = addr
		u.haveDataV6 = true
	}
}

// SetSyncAddr records the sync address and port. Used by LBManager after a
// successful reserveLB.
func (u *URI) SetSyncAddr(addr net.IP, port uint16) {
	u.syncAddr = addr
	u.syncPort = port
	u.haveSync = true
}

// String renders the URI with whichever token is preferred: session if
// present, else instance, else admin, else no token at all.
func (u *URI) String() string {
	tt := Admin
	if u.tokens[Session] != "" {
		tt = Session
	} else if u.tokens[Instance] != "" {
		tt = Instance
	}
	return u.ToString(tt)
}

// ToString renders the URI with the token from slot tt (if any).
func (u *URI) ToString(tt TokenType) string {
	var b strings.Builder
	if u.useTLS {
		b.WriteString("ejfats://")
	} else {
		b.WriteString("ejfat://")
	}
	if tok := u.tokens[tt]; tok != "" {
		b.WriteString(tok)
		b.WriteString("@")
	}
	host := u.cpHost
	if host == "" && u.cpAddr != nil {
		host = u.cpAddr.String()
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	fmt.Fprintf(&b, "%s:%d", host, u.cpPort)
	if u.lbID != "" {
		b.WriteString("/lb/")
		b.WriteString(u.lbID)
	}

	var q []string
	if u.haveDataV4 {
		q = append(q, "data="+addrPortString(u.dataAddrV4, u.dataPort))
	}
	if u.haveDataV6 {
		q = append(q, "data="+addrPortString(u.dataAddrV6, u.dataPort))
	}
	if u.haveSync {
		q = append(q, "sync="+addrPortString(u.syncAddr, u.syncPort))
	}
	if u.sessionID != "" {
		q = append(q, "sessionid="+u.sessionID)
	}
	if len(q) > 0 {
		b.WriteString("?")
		b.WriteString(strings.Join(q, "&"))
	}
	return b.String()
}

func addrPortString(ip net.IP, port uint16) string {
	if ip.To4() != nil {
		return fmt.Sprintf("%s:%d", ip.String(), port)
	}
	return fmt.Sprintf("[%s]:%d", ip.String(), port)
}

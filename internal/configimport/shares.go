// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package configimport

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/constants"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stratastor/smbd-companion/pkg/errors"
)

// GlobalConfig is the [global] block's two directives the daemon cares
// about; every other directive in that block is framed and sent but not
// individually interpreted here — the kernel module consumes them.
type GlobalConfig struct {
	Workgroup    string
	ServerString string
}

// Share is one parsed share block's summary, for logging and for the
// synthetic IPC$ bootstrap share the daemon seeds at startup.
type Share struct {
	Name    string
	Comment string
	Path    string
}

// shareBuilder accumulates the current share block's framed buffer
// (directives joined by "<"), flushing and re-emitting the share header
// whenever the next directive would not fit in a page.
type shareBuilder struct {
	link   Caller
	log    logger.Logger
	global *GlobalConfig
	shares []Share

	header    string // "sharename = <name>", re-emitted as a chunk prefix
	buf       string
	pathOK    bool
	path      string
	sharename string
	comment   string
	sawPath   bool
}

// ImportShares streams confPath's share definitions to the kernel
// module: a line-oriented parse, page-sized chunked `<`-framing, and
// share-header re-emission on overflow. The framing is the on-wire
// contract with the kernel module and must stay bit-exact. It returns
// the parsed share list (synthetic IPC$ share excluded; callers prepend
// it) and the parsed [global] directives.
func ImportShares(link Caller, open Opener, confPath string, log logger.Logger) ([]Share, GlobalConfig, error) {
	f, err := open(confPath)
	if err != nil {
		return nil, GlobalConfig{}, errors.Wrap(err, errors.ConfigNotFound).WithMetadata("path", confPath)
	}
	defer f.Close()

	b := &shareBuilder{link: link, log: log, global: &GlobalConfig{}}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, constants.PageSize), constants.PageSize*4)

	var pending []string
	flushContinuation := func() string {
		if len(pending) == 0 {
			return ""
		}
		joined := strings.Join(pending, "")
		pending = nil
		return joined
	}

	for scanner.Scan() {
		raw := scanner.Text()
		if strings.HasSuffix(raw, "\\") {
			pending = append(pending, strings.TrimSuffix(raw, "\\"))
			continue
		}
		line := flushContinuation() + raw

		directive, isHeader := firstValidChar(line)
		if directive == "" {
			continue
		}

		if err := b.feed(directive, isHeader); err != nil {
			return nil, GlobalConfig{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, GlobalConfig{}, errors.Wrap(err, errors.ConfigReadError).WithMetadata("path", confPath)
	}

	if err := b.finish(); err != nil {
		return nil, GlobalConfig{}, err
	}

	return b.shares, *b.global, nil
}

// firstValidChar skips leading bytes that are none of `;`, `#`, `[`, or
// alphanumeric, then copies through to end of line (comments truncate
// the line at `;`/`#`). isHeader reports whether the line opens a new
// `[section]` block.
func firstValidChar(line string) (string, bool) {
	i := 0
	for i < len(line) {
		c := line[i]
		if c == ';' || c == '#' || c == '[' || isAlnum(c) {
			break
		}
		i++
	}
	if i == len(line) {
		return "", false
	}
	if line[i] == ';' || line[i] == '#' {
		return "", false
	}

	end := i
	for end < len(line) && line[end] != ';' && line[end] != '#' {
		end++
	}
	return strings.TrimSpace(line[i:end]), line[i] == '['
}

func isAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// feed processes one parsed directive line. On a `[section]` header it
// flushes the previous block (if any) and opens a new one; otherwise it
// appends the directive to the current block, chunk-flushing as needed.
func (b *shareBuilder) feed(directive string, isHeader bool) error {
	if isHeader && b.buf != "" {
		if err := b.flush(true); err != nil {
			return err
		}
	}

	if isHeader {
		name := strings.Trim(directive, "[]")
		b.sharename = name
		b.comment = ""
		b.path = ""
		b.header = fmt.Sprintf("sharename = %s", name)
		b.sawPath = false
		directive = b.header
	} else if comment, ok := commentDirective(directive); ok {
		b.comment = comment
	} else if path, ok := pathDirective(directive); ok && !b.sawPath {
		b.sawPath = true
		b.path = path
		if !strings.EqualFold(b.sharename, "global") {
			if _, err := os.Stat(path); err != nil {
				b.log.Error("share path does not exist, skipping block", "share", b.sharename, "path", path)
				b.pathOK = false
			} else {
				b.pathOK = true
			}
		} else {
			b.pathOK = true
		}
	}

	return b.appendDirective(directive)
}

// appendDirective joins directive onto the current chunk buffer with
// the literal `<` separator, flushing first (and re-prefixing the new
// chunk with the share header) when it would overflow constants.PageSize.
func (b *shareBuilder) appendDirective(directive string) error {
	addition := "<" + directive
	if len(b.buf)+len(addition)+1 >= constants.PageSize {
		if err := b.flush(false); err != nil {
			return err
		}
		if b.header != "" {
			b.buf = "<" + b.header
		}
	}
	b.buf += addition
	return nil
}

// flush sends the accumulated chunk as one CONFIG_SHARE message. When
// final is true the block is fully closed and recorded into b.shares
// (skipped if its path failed validation); otherwise this is a
// mid-block overflow flush and the block continues in the next chunk.
func (b *shareBuilder) flush(final bool) error {
	if b.buf == "" {
		return nil
	}
	if !b.pathOK && b.sawPath {
		b.buf = ""
		return nil
	}

	payload := []byte(b.buf + "\x00")
	hdr := wire.Header{Type: wire.ConfigShare, BufLen: uint32(len(payload))}
	rsp, err := b.link.Call(hdr, payload)
	if err != nil {
		return errors.Wrap(err, errors.ConfigLoadFailed).WithMetadata("share", b.sharename)
	}
	if rsp.Header.Error != 0 {
		b.log.Error("kernel rejected share block", "share", b.sharename, "error", rsp.Header.Error)
	}

	if final {
		if strings.EqualFold(b.sharename, "global") {
			extractGlobal(b.sharename, b.buf, b.global)
		} else {
			b.shares = append(b.shares, Share{Name: b.sharename, Comment: b.comment, Path: b.path})
		}
	}
	b.buf = ""
	return nil
}

func (b *shareBuilder) finish() error {
	return b.flush(true)
}

// pathDirective recognizes a `path = ...` directive, case-insensitive.
func pathDirective(directive string) (string, bool) {
	lower := strings.ToLower(directive)
	if !strings.HasPrefix(lower, "path") {
		return "", false
	}
	i := strings.IndexByte(directive, '=')
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(directive[i+1:]), true
}

// commentDirective recognizes a `comment = ...` directive.
func commentDirective(directive string) (string, bool) {
	lower := strings.ToLower(directive)
	if !strings.HasPrefix(lower, "comment") {
		return "", false
	}
	i := strings.IndexByte(directive, '=')
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(directive[i+1:]), true
}

// extractGlobal pulls workgroup/server string out of the synthetic
// "sharename = global" block's framed buffer into g. The global block
// never becomes a share entry of its own.
func extractGlobal(sharename, buf string, g *GlobalConfig) {
	if !strings.EqualFold(sharename, "global") {
		return
	}
	for _, part := range strings.Split(buf, "<") {
		lower := strings.ToLower(part)
		switch {
		case strings.HasPrefix(lower, "server string"):
			if i := strings.IndexByte(part, '='); i >= 0 {
				g.ServerString = strings.TrimSpace(part[i+1:])
			}
		case strings.HasPrefix(lower, "workgroup"):
			if i := strings.IndexByte(part, '='); i >= 0 {
				g.Workgroup = strings.TrimSpace(part[i+1:])
			}
		}
	}
}

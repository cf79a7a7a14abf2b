// Package endpoint serves the reports as read-only files on a FUSE
// mount. Each open starts a session bound to the opening process; reads
// page through it and release stops it.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/srodi/procscope/pkg/cpuinfo"
	"github.com/srodi/procscope/pkg/report"
	"github.com/srodi/procscope/pkg/types"
)

// Opener opens report sessions. *report.Reporter implements it.
type Opener interface {
	Names() []types.Report
	Open(name types.Report, id types.Identity) (report.Stream, error)
}

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory the reports appear in. It is created
	// if it does not exist.
	Mountpoint string

	// Reports opens the sessions.
	Reports Opener

	// AllowOther lets other users read the reports. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// FSName is the filesystem source shown in the mount table.
	FSName string

	// Logger receives diagnostic messages. If nil, only errors are
	// logged to stderr.
	Logger *slog.Logger
}

// Mount mounts the report filesystem. The caller must Unmount the
// returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Reports == nil {
		return nil, fmt.Errorf("reports are required")
	}
	options = withDefaults(options)

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	server, err := gofuse.Mount(options.Mountpoint, newRoot(&options), &gofuse.Options{
		MountOptions: fuse.MountOptions{
			FsName:     options.FSName,
			Name:       "procscope",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("report filesystem mounted",
		"mountpoint", options.Mountpoint,
		"reports", options.Reports.Names(),
	)
	return server, nil
}

func withDefaults(options Options) Options {
	if options.FSName == "" {
		options.FSName = "procscope"
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	return options
}

// callerPid extracts the pid of the process issuing a request.
var callerPid = func(ctx context.Context) (uint32, bool) {
	caller, ok := fuse.FromContext(ctx)
	if !ok || caller == nil {
		return 0, false
	}
	return caller.Pid, true
}

// rootNode is the mount root. Its children are the report files.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func newRoot(options *Options) *rootNode {
	return &rootNode{options: options}
}

func (r *rootNode) OnAdd(ctx context.Context) {
	for _, name := range r.options.Reports.Names() {
		child := r.NewPersistentInode(ctx, &reportNode{name: name, options: r.options},
			gofuse.StableAttr{Mode: syscall.S_IFREG})
		r.AddChild(string(name), child, true)
	}
}

// reportNode is one report file. Its content is generated per open,
// so it reports a zero size and is read with direct I/O.
type reportNode struct {
	gofuse.Inode
	name    types.Report
	options *Options
}

var _ gofuse.InodeEmbedder = (*reportNode)(nil)
var _ gofuse.NodeGetattrer = (*reportNode)(nil)
var _ gofuse.NodeOpener = (*reportNode)(nil)

func (n *reportNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = 0
	return 0
}

func (n *reportNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	pid, ok := callerPid(ctx)
	if !ok {
		return nil, 0, syscall.EACCES
	}
	id := types.Identity(pid)

	stream, err := n.options.Reports.Open(n.name, id)
	if err != nil {
		n.options.Logger.Warn("open failed", "report", n.name, "pid", id, "error", err)
		return nil, 0, openErrno(err)
	}

	n.options.Logger.Debug("session opened", "report", n.name, "pid", id)
	return &handle{name: n.name, id: id, stream: stream, logger: n.options.Logger}, fuse.FOPEN_DIRECT_IO, 0
}

func openErrno(err error) syscall.Errno {
	switch {
	case errors.Is(err, cpuinfo.ErrScopeExhausted):
		return syscall.ENOMEM
	case errors.Is(err, report.ErrUnknownReport):
		return syscall.ENOENT
	default:
		return syscall.EIO
	}
}

// handle is an open session. The kernel may issue reads on one handle
// concurrently, so the stream is guarded by mu.
type handle struct {
	name   types.Report
	id     types.Identity
	logger *slog.Logger

	mu     sync.Mutex
	stream report.Stream
	offset int64
	closed bool
}

var _ gofuse.FileReader = (*handle)(nil)
var _ gofuse.FileReleaser = (*handle)(nil)

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, syscall.EBADF
	}
	if off != h.offset {
		pos, err := h.stream.Seek(off, io.SeekStart)
		if err != nil {
			return nil, syscall.EINVAL
		}
		h.offset = pos
	}

	n, err := io.ReadFull(h.stream, dest)
	h.offset += int64(n)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		h.logger.Error("read failed", "report", h.name, "pid", h.id, "offset", off, "error", err)
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}
	h.closed = true
	if err := h.stream.Close(); err != nil {
		h.logger.Warn("close failed", "report", h.name, "pid", h.id, "error", err)
	}
	h.logger.Debug("session released", "report", h.name, "pid", h.id, "bytes", h.offset)
	return 0
}

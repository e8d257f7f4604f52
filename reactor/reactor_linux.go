//go:build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based poller.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
)

const oneShotRead = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLET | unix.EPOLLONESHOT

// epollPoller is an epoll-based Poller.
type epollPoller struct {
	epfd int
	raw  []unix.EpollEvent // owned by the single caller of Wait
}

// NewPoller constructs a new epoll instance.
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollPoller{epfd: epfd}, nil
}

func (p *epollPoller) ctl(op, fd int) error {
	ev := unix.EpollEvent{Events: oneShotRead, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

func (p *epollPoller) Add(fd int) error {
	if err := p.ctl(unix.EPOLL_CTL_ADD, fd); err != nil {
		return fmt.Errorf("epoll ctl add fd=%d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Rearm(fd int) error {
	if err := p.ctl(unix.EPOLL_CTL_MOD, fd); err != nil {
		return fmt.Errorf("epoll ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd=%d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Wait(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		events[i] = Event{Fd: int(raw[i].Fd), Events: toMask(raw[i].Events)}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func toMask(bits uint32) api.EventMask {
	var m api.EventMask
	if bits&unix.EPOLLIN != 0 {
		m |= api.EventRead
	}
	if bits&unix.EPOLLOUT != 0 {
		m |= api.EventWrite
	}
	if bits&unix.EPOLLERR != 0 {
		m |= api.EventError
	}
	if bits&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		m |= api.EventHangup
	}
	return m
}

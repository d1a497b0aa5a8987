package presence

import (
	"context"
	"time"

	"spotmatch/app/internal/geo"
)

// RemoteLocator bridges fixes reported by the device over the API into a
// tracker's watch stream. The mobile shell reports the permission outcome
// once and then posts coordinates as the device produces them.
type RemoteLocator struct {
	permission Permission
	fixes      chan Fix
}

// NewRemoteLocator starts in the prompt state.
func NewRemoteLocator() *RemoteLocator {
	return &RemoteLocator{
		permission: PermissionPrompt,
		fixes:      make(chan Fix, 16),
	}
}

// SetPermission records the device's prompt outcome.
func (l *RemoteLocator) SetPermission(p Permission) {
	l.permission = p
}

// Push feeds one reported coordinate into the watch stream. A full buffer
// drops the sample; presence is best effort and the next fix supersedes it
// anyway.
func (l *RemoteLocator) Push(p geo.Point) {
	select {
	case l.fixes <- Fix{Point: p, At: time.Now()}:
	default:
	}
}

func (l *RemoteLocator) Request(ctx context.Context) (Permission, error) {
	return l.permission, nil
}

func (l *RemoteLocator) Watch(ctx context.Context) (<-chan Fix, error) {
	return l.fixes, nil
}

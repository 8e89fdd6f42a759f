package domain

import "time"

// Application describes one relying application participating in a session.
type Application struct {
	AppID   string
	AppName string
	Subject string
}

// Session represents a live authenticated login context for a user. A session
// may span multiple applications and owns every token issued within it.
type Session struct {
	ID             string
	UserID         string
	Applications   []Application
	UserAgent      *string
	IP             *string
	LoginTime      time.Time
	LastAccessTime time.Time
}

// Touch updates last-access metadata for the session when activity occurs.
func (s *Session) Touch(at time.Time, ip, userAgent *string) {
	s.LastAccessTime = at
	if ip != nil {
		ipCopy := *ip
		s.IP = &ipCopy
	}
	if userAgent != nil {
		uaCopy := *userAgent
		s.UserAgent = &uaCopy
	}
}

// Clone returns a deep copy so callers never alias store-owned state.
func (s Session) Clone() Session {
	clone := s
	if s.Applications != nil {
		clone.Applications = make([]Application, len(s.Applications))
		copy(clone.Applications, s.Applications)
	}
	if s.UserAgent != nil {
		ua := *s.UserAgent
		clone.UserAgent = &ua
	}
	if s.IP != nil {
		ip := *s.IP
		clone.IP = &ip
	}
	return clone
}

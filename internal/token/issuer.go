package token

import "time"

// Pair is one refresh and one access token minted at the same instant.
type Pair struct {
	Refresh      string
	Access       string
	RefreshToken Token
	AccessToken  Token
}

// Issuer mints token pairs. It keeps no state and writes nothing.
type Issuer struct {
	codec *Codec
	now   func() time.Time
}

func NewIssuer(codec *Codec) *Issuer {
	return &Issuer{codec: codec, now: time.Now}
}

// WithClock returns a copy of the issuer reading time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	return &Issuer{codec: i.codec, now: now}
}

// Issue creates a fresh pair for subject.
func (i *Issuer) Issue(subject int64) (Pair, error) {
	now := i.now()
	refresh, rt, err := i.codec.Encode(subject, Refresh, now)
	if err != nil {
		return Pair{}, err
	}
	access, at, err := i.codec.Encode(subject, Access, now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Refresh: refresh, Access: access, RefreshToken: rt, AccessToken: at}, nil
}

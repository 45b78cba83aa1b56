package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closecrowd/blockwatch/internal/domain"
)

func TestAuthChain_InvalidUser(t *testing.T) {
	chain := AuthChain()

	v := chain.Classify("Nov  2 14:01:55 myhost sshd[1866]: Invalid user user1 from 190.55.141.229 port 36051")
	require.NotNil(t, v)
	assert.Equal(t, domain.KindInvalid, v.Kind)
	assert.Equal(t, "190.55.141.229", v.Addr)
	assert.Equal(t, "user1", v.Identity)
	assert.Equal(t, 0, v.Code)
}

func TestAuthChain_Disallowed(t *testing.T) {
	chain := AuthChain()

	v := chain.Classify("Nov  2 14:02:10 myhost sshd[1901]: User root from 203.0.113.9 not allowed because not listed in AllowUsers")
	require.NotNil(t, v)
	assert.Equal(t, domain.KindDisallowed, v.Kind)
	assert.Equal(t, "203.0.113.9", v.Addr)
	assert.Equal(t, "root", v.Identity)
}

func TestAuthChain_DisallowedHostname(t *testing.T) {
	chain := AuthChain()

	v := chain.Classify("Nov  2 14:02:10 myhost sshd[1901]: User admin from bad.example.net not allowed because not listed in AllowUsers")
	require.NotNil(t, v)
	assert.Equal(t, domain.KindDisallowed, v.Kind)
	assert.Equal(t, "bad.example.net", v.Addr)
}

// A line carrying both markers must classify as disallowed, never invalid:
// the disallowed-user log format is a superset phrase of the invalid-user
// one and rule order is the only thing keeping the kinds apart.
func TestAuthChain_OverlapPrecedence(t *testing.T) {
	chain := AuthChain()

	v := chain.Classify("Nov  2 14:03:00 myhost sshd[1944]: Invalid user guest from 198.51.100.4 not allowed because not listed in AllowUsers")
	require.NotNil(t, v)
	assert.Equal(t, domain.KindDisallowed, v.Kind)
	assert.Equal(t, "guest", v.Identity)
	assert.Equal(t, "198.51.100.4", v.Addr)
}

func TestAuthChain_ProtocolQuoteStripping(t *testing.T) {
	chain := AuthChain()

	v := chain.Classify(`Nov  2 14:05:21 myhost sshd[2010]: Bad protocol version identification '003' from 192.0.2.33 port 48210`)
	require.NotNil(t, v)
	assert.Equal(t, domain.KindProtocol, v.Kind)
	assert.Equal(t, "003", v.Identity, "surrounding quotes stripped")
	assert.Equal(t, "192.0.2.33", v.Addr)
}

func TestAuthChain_UnmatchedLines(t *testing.T) {
	chain := AuthChain()

	lines := []string{
		"Nov  2 14:06:00 myhost sshd[2050]: Accepted publickey for alice from 10.1.2.3 port 51000",
		"Nov  2 14:06:05 myhost sshd[2050]: pam_unix(sshd:session): session opened for user alice",
		"Nov  2 14:06:09 myhost CRON[2099]: (root) CMD (run-parts /etc/cron.hourly)",
		"",
	}
	for _, line := range lines {
		assert.Nil(t, chain.Classify(line), "line %q", line)
	}
}

func TestAccessLogRule(t *testing.T) {
	rule := NewAccessLogRule()

	tests := []struct {
		name     string
		line     string
		wantHit  bool
		wantAddr string
		wantCode int
		wantReq  string
	}{
		{
			name:     "404 is a violation",
			line:     `43.158.213.246 - - [20/Mar/2024:22:57:33 -0400] "GET /wh/glass.php HTTP/1.1" 404 210`,
			wantHit:  true,
			wantAddr: "43.158.213.246",
			wantCode: 404,
			wantReq:  "GET /wh/glass.php HTTP/1.1",
		},
		{
			name:    "301 is not a violation",
			line:    `43.158.213.246 - - [20/Mar/2024:22:57:33 -0400] "GET /old HTTP/1.1" 301 0`,
			wantHit: false,
		},
		{
			name:    "200 is not a violation",
			line:    `10.2.3.4 - - [20/Mar/2024:22:57:33 -0400] "GET / HTTP/1.1" 200 612`,
			wantHit: false,
		},
		{
			name:    "500 is not a violation",
			line:    `10.2.3.4 - - [20/Mar/2024:22:57:33 -0400] "GET /boom HTTP/1.1" 500 0`,
			wantHit: false,
		},
		{
			name:     "embedded escaped quote in url does not shift fields",
			line:     `198.51.100.77 - - [20/Mar/2024:23:01:10 -0400] "GET /search?q=\"404\" HTTP/1.1" 403 199`,
			wantHit:  true,
			wantAddr: "198.51.100.77",
			wantCode: 403,
			wantReq:  `GET /search?q=\"404\" HTTP/1.1`,
		},
		{
			name:     "status boundary 400",
			line:     `192.0.2.1 - - [20/Mar/2024:23:05:00 -0400] "POST /login HTTP/1.1" 400 88`,
			wantHit:  true,
			wantAddr: "192.0.2.1",
			wantCode: 400,
			wantReq:  "POST /login HTTP/1.1",
		},
		{
			name:    "auth log line declines",
			line:    "Nov  2 14:01:55 myhost sshd[1866]: Invalid user user1 from 190.55.141.229 port 36051",
			wantHit: false,
		},
		{
			name:    "truncated record declines",
			line:    `10.0.0.1 - - [20/Mar/2024:22:57:33 -0400] "GET /x`,
			wantHit: false,
		},
		{
			name:    "non numeric status declines",
			line:    `10.0.0.1 - - [20/Mar/2024:22:57:33 -0400] "GET /x HTTP/1.1" abc 1`,
			wantHit: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := rule.Match(tc.line)
			assert.Equal(t, tc.wantHit, ok)
			if !tc.wantHit {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, domain.KindHTTP, v.Kind)
			assert.Equal(t, tc.wantAddr, v.Addr)
			assert.Equal(t, tc.wantCode, v.Code)
			assert.Equal(t, tc.wantReq, v.Identity)
		})
	}
}

func TestWebChain(t *testing.T) {
	chain := WebChain()

	v := chain.Classify(`43.158.213.246 - - [20/Mar/2024:22:57:33 -0400] "GET /wh/glass.php HTTP/1.1" 404 210`)
	require.NotNil(t, v)
	assert.Equal(t, domain.KindHTTP, v.Kind)

	assert.Nil(t, chain.Classify("Nov  2 14:01:55 myhost sshd[1866]: Invalid user user1 from 190.55.141.229 port 36051"),
		"auth shapes are noise to the web chain")
}

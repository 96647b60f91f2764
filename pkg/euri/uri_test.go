package euri

import (
	"net"
	"os"
	"testing"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
	"github.com/stretchr/testify/require"
)

func TestParseMinimal(t *testing.T) {
	u, err := Parse("ejfat://cp.example.org:18020", Admin, false)
	require.NoError(t, err)
	require.False(t, u.UseTLS())
	host, port, err := u.CPHost()
	require.NoError(t, err)
	require.Equal(t, "cp.example.org", host)
	require.Equal(t, uint16(18020), port)
}

func TestParseTokenLBIDAndAddresses(t *testing.T) {
	raw := "ejfats://mytoken@192.168.1.1:18020/lb/42?data=10.0.0.1:19522&data=[2001:db8::1]:19522&sync=10.0.0.2:19523&sessionid=abc123"
	u, err := Parse(raw, Admin, false)
	require.NoError(t, err)
	require.True(t, u.UseTLS())

	tok, err := u.Token(Admin)
	require.NoError(t, err)
	require.Equal(t, "mytoken", tok)

	require.Equal(t, "42", u.LBID())
	require.Equal(t, "abc123", u.SessionID())

	require.True(t, u.HasDataAddrV4())
	v4, port, err := u.DataAddrV4()
	require.NoError(t, err)
	require.True(t, v4.Equal(net.ParseIP("10.0.0.1")))
	require.Equal(t, uint16(19522), port)

	require.True(t, u.HasDataAddrV6())
	v6, _, err := u.DataAddrV6()
	require.NoError(t, err)
	require.True(t, v6.Equal(net.ParseIP("2001:db8::1")))

	require.True(t, u.HasSyncAddr())
	sync, syncPort, err := u.SyncAddr()
	require.NoError(t, err)
	require.True(t, sync.Equal(net.ParseIP("10.0.0.2")))
	require.Equal(t, uint16(19523), syncPort)
}

func TestParseRejectsUnsupportedScheme(t *testing.T) {
	_, err := Parse("http://cp.example.org:18020", Admin, false)
	require.Error(t, err)
	require.True(t, e2sarerr.Is(err, e2sarerr.ParseError))
}

func TestParseRejectsMissingHost(t *testing.T) {
	_, err := Parse("ejfat:///lb/1", Admin, false)
	require.Error(t, err)
}

func TestGetterFailsWhenFieldAbsent(t *testing.T) {
	u, err := Parse("ejfat://cp.example.org:18020", Admin, false)
	require.NoError(t, err)

	_, _, err = u.DataAddrV4()
	require.Error(t, err)
	require.True(t, e2sarerr.Is(err, e2sarerr.ParameterNotAvailable))

	_, _, err = u.SyncAddr()
	require.True(t, e2sarerr.Is(err, e2sarerr.ParameterNotAvailable))

	_, err = u.Token(Instance)
	require.True(t, e2sarerr.Is(err, e2sarerr.ParameterNotAvailable))
}

func TestToStringRoundTrip(t *testing.T) {
	raw := "ejfat://admintok@cp.example.org:18020/lb/7?data=10.0.0.1:19522&sync=10.0.0.2:19523&sessionid=sess1"
	u, err := Parse(raw, Admin, false)
	require.NoError(t, err)

	reparsed, err := Parse(u.ToString(Admin), Admin, false)
	require.NoError(t, err)
	require.Equal(t, u.LBID(), reparsed.LBID())
	require.Equal(t, u.SessionID(), reparsed.SessionID())

	tok, err := reparsed.Token(Admin)
	require.NoError(t, err)
	require.Equal(t, "admintok", tok)
}

func TestStringPrefersMostSpecificToken(t *testing.T) {
	u, err := Parse("ejfat://cp.example.org:18020", Admin, false)
	require.NoError(t, err)
	u.SetToken(Admin, "admintok")
	u.SetToken(Instance, "instok")
	u.SetToken(Session, "sesstok")

	require.Contains(t, u.String(), "sesstok@")
}

func TestSetDataAddrDetectsFamily(t *testing.T) {
	u, err := Parse("ejfat://cp.example.org:18020", Admin, false)
	require.NoError(t, err)

	u.SetDataAddr(net.ParseIP("172.16.0.1"), 19522)
	require.True(t, u.HasDataAddrV4())
	require.False(t, u.HasDataAddrV6())

	u.SetDataAddr(net.ParseIP("fd00::1"), 19522)
	require.True(t, u.HasDataAddrV6())
}

func TestGetFromEnv(t *testing.T) {
	_, err := GetFromEnv("E2SAR_TEST_URI_UNSET", Admin, false)
	require.Error(t, err)
	require.True(t, e2sarerr.Is(err, e2sarerr.Undefined))

	require.NoError(t, os.Setenv("E2SAR_TEST_URI", "ejfat://cp.example.org:18020"))
	defer os.Unsetenv("E2SAR_TEST_URI")

	u, err := GetFromEnv("E2SAR_TEST_URI", Admin, false)
	require.NoError(t, err)
	host, _, err := u.CPHost()
	require.NoError(t, err)
	require.Equal(t, "cp.example.org", host)
}

func TestGetFromFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "ejfat_uri")
	require.NoError(t, err)
	_, err = f.WriteString("ejfat://cp.example.org:18020/lb/9\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	u, err := GetFromFile(f.Name(), Admin, false)
	require.NoError(t, err)
	require.Equal(t, "9", u.LBID())

	_, err = GetFromFile("/nonexistent/path/ejfat_uri", Admin, false)
	require.Error(t, err)
	require.True(t, e2sarerr.Is(err, e2sarerr.NotFound))
}

func TestLiteralCPAddress(t *testing.T) {
	u, err := Parse("ejfat://10.1.2.3:18020", Admin, false)
	require.NoError(t, err)

	_, _, err = u.CPHost()
	require.Error(t, err)
	require.True(t, e2sarerr.Is(err, e2sarerr.ParameterNotAvailable))

	addr, port, err := u.CPAddr()
	require.NoError(t, err)
	require.True(t, addr.Equal(net.ParseIP("10.1.2.3")))
	require.Equal(t, uint16(18020), port)
}

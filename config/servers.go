package config

import (
	"bytes"
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrServerNotFound = errors.New("server not found")

// Connection parameter keys, in the order the gateway expects them.
var ParamKeys = []string{
	"MML_DMN_SRVR_ADDR",
	"MML_DOMAIN_NAME",
	"MML_LIC_SRVR_ADDR",
	"MML_LOC_BROK_ADDR",
	"MML_LOGGER_ADDR",
	"MML_LOG_TYPE",
	"MML_SSL_CLNT_AUTH_FILE",
}

// SSLAuthFile is the client certificate parameter every server uses.
const SSLAuthFile = "rithmic_ssl_cert_auth_params"

// Test server parameters, used for any key a server entry leaves out.
var defaultParams = map[string]string{
	"MML_DMN_SRVR_ADDR":      "rituz00100.00.rithmic.com:65000~rituz00100.00.rithmic.net:65000~rituz00100.00.theomne.net:65000~rituz00100.00.theomne.com:65000",
	"MML_DOMAIN_NAME":        "rithmic_uat_dmz_domain",
	"MML_LIC_SRVR_ADDR":      "rituz00100.00.rithmic.com:56000~rituz00100.00.rithmic.net:56000~rituz00100.00.theomne.net:56000~rituz00100.00.theomne.com:56000",
	"MML_LOC_BROK_ADDR":      "rituz00100.00.rithmic.com:64100",
	"MML_LOGGER_ADDR":        "rituz00100.00.rithmic.com:45454~rituz00100.00.rithmic.net:45454~rituz00100.00.theomne.com:45454~rituz00100.00.theomne.net:45454",
	"MML_LOG_TYPE":           "log_net",
	"MML_SSL_CLNT_AUTH_FILE": SSLAuthFile,
}

// ConnectionParams are the MML_* settings of one system gateway.
type ConnectionParams map[string]string

// Get returns the value for key, falling back to the test server default.
func (p ConnectionParams) Get(key string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return defaultParams[key]
}

// Env returns the environment block handed to the gateway: one KEY=value
// entry per parameter followed by USER=<user>.
func (p ConnectionParams) Env(user string) []string {
	env := make([]string, 0, len(ParamKeys)+1)
	for _, k := range ParamKeys {
		env = append(env, k+"="+p.Get(k))
	}
	return append(env, "USER="+user)
}

// Servers maps system → gateway → parameters.
type Servers map[string]map[string]ConnectionParams

// DefaultServers holds only the test server.
func DefaultServers() Servers {
	return Servers{"Rithmic Test": {"Chicago Area": ConnectionParams{}}}
}

// LoadServers reads a base64 encoded JSON server directory.
func LoadServers(path string) (Servers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read servers file")
	}
	return DecodeServers(data)
}

func DecodeServers(data []byte) (Servers, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrap(err, "decode servers file")
	}
	var s Servers
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "parse servers file")
	}
	return s, nil
}

// systems returns the system names, Rithmic systems first, each group sorted.
func (s Servers) systems() []string {
	var rithmic, other []string
	for sys := range s {
		if strings.HasPrefix(sys, "Rithmic") {
			rithmic = append(rithmic, sys)
		} else {
			other = append(other, sys)
		}
	}
	sort.Strings(rithmic)
	sort.Strings(other)
	return append(rithmic, other...)
}

func (s Servers) gateways(sys string) []string {
	gws := make([]string, 0, len(s[sys]))
	for gw := range s[sys] {
		gws = append(gws, gw)
	}
	sort.Strings(gws)
	return gws
}

// Names lists every server as "<system>_<gateway>".
func (s Servers) Names() []string {
	var out []string
	for _, sys := range s.systems() {
		for _, gw := range s.gateways(sys) {
			out = append(out, sys+"_"+gw)
		}
	}
	return out
}

// Lookup returns the parameters of a "<system>_<gateway>" server.
func (s Servers) Lookup(name string) (ConnectionParams, error) {
	for sys, gws := range s {
		gw, ok := strings.CutPrefix(name, sys+"_")
		if !ok {
			continue
		}
		if p, ok := gws[gw]; ok {
			return p, nil
		}
	}
	return nil, errors.WithMessagef(ErrServerNotFound, "%q", name)
}

// Encode renders the directory as base64 encoded JSON, Rithmic systems first.
func (s Servers) Encode() ([]byte, error) {
	var buf bytes.Buffer
	stream := jsoniter.NewStream(json, &buf, 4096)
	stream.WriteObjectStart()
	for i, sys := range s.systems() {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(sys)
		stream.WriteVal(s[sys])
	}
	stream.WriteObjectEnd()
	if err := stream.Flush(); err != nil {
		return nil, errors.Wrap(err, "encode servers")
	}
	if stream.Error != nil {
		return nil, errors.Wrap(stream.Error, "encode servers")
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(out, buf.Bytes())
	return out, nil
}

var (
	paramsFileRe = regexp.MustCompile(`^(?P<system>[^_]+)_(?P<gateway>.+?)_connection_params(?:\.(?P<version>[^.]+))?\.txt$`)
	paramLineRe  = regexp.MustCompile(`(MML_[\w_]+)\s*=\s*(.+)`)
)

// GenerateServers builds a directory from the vendor's
// "<system>_<gateway>_connection_params[.<version>].txt" files under dir.
func GenerateServers(dir string) (Servers, error) {
	out := Servers{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := paramsFileRe.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}

		sys, gw := m[1], m[2]
		params := ConnectionParams{}
		for _, line := range strings.Split(string(data), "\n") {
			if pm := paramLineRe.FindStringSubmatch(line); pm != nil {
				params[pm[1]] = strings.TrimSpace(pm[2])
			}
		}
		params["MML_SSL_CLNT_AUTH_FILE"] = SSLAuthFile

		if out[sys] == nil {
			out[sys] = map[string]ConnectionParams{}
		}
		if prev, ok := out[sys][gw]; ok {
			for k, v := range params {
				prev[k] = v
			}
		} else {
			out[sys][gw] = params
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan connection params")
	}
	return out, nil
}

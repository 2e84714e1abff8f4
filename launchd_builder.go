package gwsvc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// plistDoctype is the DOCTYPE line Apple's tooling expects in job
// definitions.
const plistDoctype = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">`

// BuilderLaunchd generates and installs launchd property lists for the
// gateway.
type BuilderLaunchd struct {
	// Label is the launchd job label
	Label string
	// PlistDir is where job definitions are written
	// (default ~/Library/LaunchAgents)
	PlistDir string
	// LogPath, when set, routes the job's stdout and stderr to a file
	LogPath string
}

// DefaultLaunchAgentsDir returns the per-user LaunchAgents directory.
func DefaultLaunchAgentsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("gwsvc: resolving home directory: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents"), nil
}

// PlistPath returns the job definition's on-disk path.
func (b *BuilderLaunchd) PlistPath() string {
	return filepath.Join(b.PlistDir, b.Label+".plist")
}

// BuildPlist generates the job definition XML for spec. RunAtLoad and
// KeepAlive are always set: the gateway is expected to come up at login
// and stay up until booted out.
func (b *BuilderLaunchd) BuildPlist(spec InstallSpec) (string, error) {
	if len(spec.ProgramArguments) == 0 {
		return "", fmt.Errorf("gwsvc: command not specified")
	}

	var p strings.Builder
	p.WriteString(xml.Header)
	p.WriteString(plistDoctype + "\n")
	p.WriteString("<plist version=\"1.0\">\n")
	p.WriteString("<dict>\n")

	fmt.Fprintf(&p, "\t<key>Label</key>\n\t<string>%s</string>\n", xmlEscape(b.Label))

	p.WriteString("\t<key>ProgramArguments</key>\n")
	p.WriteString("\t<array>\n")
	for _, arg := range spec.ProgramArguments {
		fmt.Fprintf(&p, "\t\t<string>%s</string>\n", xmlEscape(arg))
	}
	p.WriteString("\t</array>\n")

	if spec.WorkingDirectory != "" {
		fmt.Fprintf(&p, "\t<key>WorkingDirectory</key>\n\t<string>%s</string>\n", xmlEscape(spec.WorkingDirectory))
	}

	if len(spec.Environment) > 0 {
		p.WriteString("\t<key>EnvironmentVariables</key>\n")
		p.WriteString("\t<dict>\n")
		for _, key := range spec.environKeys() {
			fmt.Fprintf(&p, "\t\t<key>%s</key>\n\t\t<string>%s</string>\n",
				xmlEscape(key), xmlEscape(spec.Environment[key]))
		}
		p.WriteString("\t</dict>\n")
	}

	p.WriteString("\t<key>RunAtLoad</key>\n\t<true/>\n")
	p.WriteString("\t<key>KeepAlive</key>\n\t<true/>\n")

	if b.LogPath != "" {
		fmt.Fprintf(&p, "\t<key>StandardOutPath</key>\n\t<string>%s</string>\n", xmlEscape(b.LogPath))
		fmt.Fprintf(&p, "\t<key>StandardErrorPath</key>\n\t<string>%s</string>\n", xmlEscape(b.LogPath))
	}

	p.WriteString("</dict>\n")
	p.WriteString("</plist>\n")

	return p.String(), nil
}

// Write renders the job definition and installs it atomically, creating
// the LaunchAgents directory if needed. It returns the plist path.
func (b *BuilderLaunchd) Write(spec InstallSpec) (string, error) {
	content, err := b.BuildPlist(spec)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.PlistDir, DirMode); err != nil {
		return "", fmt.Errorf("gwsvc: creating plist dir: %w", err)
	}
	path := b.PlistPath()
	if err := renameio.WriteFile(path, []byte(content), FileMode); err != nil {
		return "", fmt.Errorf("gwsvc: writing plist: %w", err)
	}
	return path, nil
}

// Remove deletes the job definition. A file that does not exist is
// success.
func (b *BuilderLaunchd) Remove() error {
	if err := os.Remove(b.PlistPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("gwsvc: removing plist: %w", err)
	}
	return nil
}

// xmlEscape escapes a string for embedding in plist XML
func xmlEscape(s string) string {
	var buf bytes.Buffer
	// EscapeText only errors on a failing writer; bytes.Buffer never fails
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// parsePlist extracts the job's invocation from property list XML. Only
// the keys the gateway writes are understood; everything else is
// skipped.
func parsePlist(data []byte) (*CommandSnapshot, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("gwsvc: plist has no dict")
			}
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "dict" {
			return parsePlistDict(dec)
		}
	}
}

// parsePlistDict walks the top-level dict's key/value pairs
func parsePlistDict(dec *xml.Decoder) (*CommandSnapshot, error) {
	snap := &CommandSnapshot{}
	var key string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "key":
				if err := dec.DecodeElement(&key, &el); err != nil {
					return nil, err
				}
			case "string":
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return nil, err
				}
				if key == "WorkingDirectory" {
					snap.WorkingDirectory = s
				}
				key = ""
			case "array":
				if key == "ProgramArguments" {
					args, err := parsePlistStringArray(dec)
					if err != nil {
						return nil, err
					}
					snap.ProgramArguments = args
				} else if err := dec.Skip(); err != nil {
					return nil, err
				}
				key = ""
			case "dict":
				if key == "EnvironmentVariables" {
					env, err := parsePlistStringDict(dec)
					if err != nil {
						return nil, err
					}
					if len(env) > 0 {
						snap.Environment = env
					}
				} else if err := dec.Skip(); err != nil {
					return nil, err
				}
				key = ""
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				key = ""
			}
		case xml.EndElement:
			if el.Name.Local == "dict" {
				if len(snap.ProgramArguments) == 0 {
					return nil, fmt.Errorf("gwsvc: plist has no ProgramArguments")
				}
				return snap, nil
			}
		}
	}
}

// parsePlistStringArray collects <string> children until the array ends
func parsePlistStringArray(dec *xml.Decoder) ([]string, error) {
	var out []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "string" {
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return nil, err
				}
				out = append(out, s)
			} else if err := dec.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if el.Name.Local == "array" {
				return out, nil
			}
		}
	}
}

// parsePlistStringDict collects alternating key/string pairs until the
// dict ends
func parsePlistStringDict(dec *xml.Decoder) (map[string]string, error) {
	out := make(map[string]string)
	var key string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "key":
				if err := dec.DecodeElement(&key, &el); err != nil {
					return nil, err
				}
			case "string":
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return nil, err
				}
				if key != "" {
					out[key] = s
					key = ""
				}
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if el.Name.Local == "dict" {
				return out, nil
			}
		}
	}
}

package otr

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// protocolName is the protocol column of the fingerprint file.
const protocolName = "xmpp"

// Fingerprint is a known peer key fingerprint.
type Fingerprint struct {
	Contact string
	Account string
	Value   []byte
	// Trust is empty for unverified fingerprints and a free-form label
	// (such as "smp") once verified.
	Trust string
}

// Verified reports whether the fingerprint has been verified.
func (f Fingerprint) Verified() bool {
	return f.Trust != ""
}

type fingerprints struct {
	list []Fingerprint
}

func (f *fingerprints) find(contact string, fp []byte) int {
	for i, known := range f.list {
		if strings.EqualFold(known.Contact, contact) && bytes.Equal(known.Value, fp) {
			return i
		}
	}
	return -1
}

// add records fp for contact and reports whether it was new.
func (f *fingerprints) add(contact, account string, fp []byte) bool {
	if f.find(contact, fp) >= 0 {
		return false
	}
	f.list = append(f.list, Fingerprint{
		Contact: contact,
		Account: account,
		Value:   append([]byte(nil), fp...),
	})
	return true
}

func (f *fingerprints) setTrust(contact string, fp []byte, trust string) bool {
	i := f.find(contact, fp)
	if i < 0 {
		return false
	}
	f.list[i].Trust = trust
	return true
}

func (f *fingerprints) forContact(contact string) []Fingerprint {
	var out []Fingerprint
	for _, known := range f.list {
		if strings.EqualFold(known.Contact, contact) {
			out = append(out, known)
		}
	}
	return out
}

// marshal writes the libotr fingerprint file format: one tab-separated
// line of contact, account, protocol, hex fingerprint and trust.
func (f *fingerprints) marshal() []byte {
	var buf bytes.Buffer
	for _, known := range f.list {
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t%s\n",
			known.Contact, known.Account, protocolName, hex.EncodeToString(known.Value), known.Trust)
	}
	return buf.Bytes()
}

func parseFingerprints(data []byte) (*fingerprints, error) {
	f := &fingerprints{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 4 {
			return nil, fmt.Errorf("fingerprint line %d: want at least 4 columns, got %d", line, len(cols))
		}
		fp, err := hex.DecodeString(cols[3])
		if err != nil || len(fp) != FingerprintLength {
			return nil, fmt.Errorf("fingerprint line %d: bad fingerprint %q", line, cols[3])
		}
		known := Fingerprint{Contact: cols[0], Account: cols[1], Value: fp}
		if len(cols) > 4 {
			known.Trust = cols[4]
		}
		f.list = append(f.list, known)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

package capture

import (
	"container/list"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCAOrganization is the organization name for generated certificates.
	DefaultCAOrganization = "inspectd Local CA"
	// DefaultCAValidityDays is the default validity period for CA certificates.
	DefaultCAValidityDays = 3650
	// DefaultKeyBits is the default RSA key size.
	DefaultKeyBits = 2048
	// DefaultCertCacheSize is the default maximum number of host certificates to cache.
	DefaultCertCacheSize = 1000
)

// ErrCANotLoaded is returned when the CA has been neither loaded nor generated.
var ErrCANotLoaded = errors.New("CA certificate not loaded")

type certCacheEntry struct {
	key  string
	pair *CertPair
}

// certLRUCache is a thread-safe LRU cache of host certificates.
type certLRUCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
}

func newCertLRUCache(maxSize int) *certLRUCache {
	if maxSize <= 0 {
		maxSize = DefaultCertCacheSize
	}
	return &certLRUCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

func (c *certLRUCache) get(key string) (*CertPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*certCacheEntry).pair, true
}

func (c *certLRUCache) set(key string, pair *CertPair) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*certCacheEntry).pair = pair
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			delete(c.items, oldest.Value.(*certCacheEntry).key)
			c.order.Remove(oldest)
		}
	}
	c.items[key] = c.order.PushFront(&certCacheEntry{key: key, pair: pair})
}

func (c *certLRUCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CAManager owns the local CA and signs per-host certificates with it.
type CAManager struct {
	mu sync.RWMutex

	caCert    *x509.Certificate
	caKey     *rsa.PrivateKey
	certPath  string
	keyPath   string
	certCache *certLRUCache
}

// CertPair holds a certificate and its private key.
type CertPair struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
}

// CAManagerOption is a functional option for configuring CAManager.
type CAManagerOption func(*CAManager)

// WithCertCacheSize sets the maximum number of host certificates to cache.
func WithCertCacheSize(size int) CAManagerOption {
	return func(m *CAManager) {
		m.certCache = newCertLRUCache(size)
	}
}

// NewCAManager creates a CA manager storing its files at the given paths.
func NewCAManager(certPath, keyPath string, opts ...CAManagerOption) *CAManager {
	m := &CAManager{
		certPath:  certPath,
		keyPath:   keyPath,
		certCache: newCertLRUCache(DefaultCertCacheSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CertPath returns the path to the CA certificate file.
func (m *CAManager) CertPath() string { return m.certPath }

// KeyPath returns the path to the CA private key file.
func (m *CAManager) KeyPath() string { return m.keyPath }

// Exists reports whether both CA files are present on disk.
func (m *CAManager) Exists() bool {
	_, certErr := os.Stat(m.certPath)
	_, keyErr := os.Stat(m.keyPath)
	return certErr == nil && keyErr == nil
}

// Generate creates a new self-signed CA and writes it to disk, replacing any
// existing files.
func (m *CAManager) Generate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := rsa.GenerateKey(rand.Reader, DefaultKeyBits)
	if err != nil {
		return fmt.Errorf("generate CA key: %w", err)
	}
	serial, err := newSerial()
	if err != nil {
		return err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{DefaultCAOrganization},
			CommonName:   DefaultCAOrganization,
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(0, 0, DefaultCAValidityDays),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create CA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.certPath), 0o700); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.keyPath), 0o700); err != nil {
		return err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(m.certPath, certPEM, 0o644); err != nil { //nolint:gosec // certificate is public
		return fmt.Errorf("write CA certificate: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(m.keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write CA key: %w", err)
	}

	m.caCert = cert
	m.caKey = key
	return nil
}

// Load reads the CA certificate and key from disk.
func (m *CAManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	certPEM, err := os.ReadFile(m.certPath)
	if err != nil {
		return err
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return fmt.Errorf("%s: no PEM certificate", m.certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("parse CA certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(m.keyPath)
	if err != nil {
		return err
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return fmt.Errorf("%s: no PEM key", m.keyPath)
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("parse CA key: %w", err)
	}

	m.caCert = cert
	m.caKey = key
	return nil
}

// EnsureCA loads the CA from disk, generating it first when absent.
func (m *CAManager) EnsureCA() error {
	if m.Exists() {
		return m.Load()
	}
	return m.Generate()
}

// GenerateHostCert returns a certificate for host signed by the CA. Results
// are cached per host.
func (m *CAManager) GenerateHostCert(host string) (*CertPair, error) {
	host = strings.ToLower(host)
	if pair, ok := m.certCache.get(host); ok {
		return pair, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if pair, ok := m.certCache.get(host); ok {
		return pair, nil
	}
	if m.caCert == nil || m.caKey == nil {
		return nil, ErrCANotLoaded
	}

	key, err := rsa.GenerateKey(rand.Reader, DefaultKeyBits)
	if err != nil {
		return nil, err
	}
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, m.caCert, &key.PublicKey, m.caKey)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, err
	}

	pair := &CertPair{Cert: cert, Key: key}
	m.certCache.set(host, pair)
	return pair, nil
}

// CACertPEM returns the CA certificate in PEM format.
func (m *CAManager) CACertPEM() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.caCert == nil {
		return nil, ErrCANotLoaded
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: m.caCert.Raw}), nil
}

// CertInfo summarizes the CA certificate.
type CertInfo struct {
	Fingerprint  string    `json:"fingerprint"`
	NotAfter     time.Time `json:"notAfter"`
	Organization string    `json:"organization"`
}

// CertInfo returns information about the CA certificate. The fingerprint is
// the colon-separated SHA-256 of the DER encoding.
func (m *CAManager) CertInfo() (*CertInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.caCert == nil {
		return nil, ErrCANotLoaded
	}

	org := ""
	if len(m.caCert.Subject.Organization) > 0 {
		org = m.caCert.Subject.Organization[0]
	}

	sum := sha256.Sum256(m.caCert.Raw)
	hexParts := make([]string, len(sum))
	for i, b := range sum {
		hexParts[i] = fmt.Sprintf("%02X", b)
	}

	return &CertInfo{
		Fingerprint:  strings.Join(hexParts, ":"),
		NotAfter:     m.caCert.NotAfter,
		Organization: org,
	}, nil
}

func newSerial() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}

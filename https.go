package rustlet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

func tlsListener(cert, key string) listenerFactory {
	return func(network, addr string) (net.Listener, error) {
		certificate, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, err
		}

		return tls.Listen(network, addr, &tls.Config{
			Certificates: []tls.Certificate{certificate},
		})
	}
}

// autoTLSListener obtains certificates through ACME. Localhost deployments
// cannot pass an ACME challenge, so those get a cached self-signed pair.
func autoTLSListener(selfSigned bool, domains ...string) listenerFactory {
	if selfSigned {
		return func(network, addr string) (net.Listener, error) {
			cert, key, err := selfSignedCert()
			if err != nil {
				return nil, err
			}

			return tlsListener(cert, key)(network, addr)
		}
	}

	return func(network, addr string) (net.Listener, error) {
		m := &autocert.Manager{
			Prompt: autocert.AcceptTOS,
		}

		if len(domains) > 0 {
			m.HostPolicy = autocert.HostWhitelist(domains...)
		}

		cache := cacheDir()
		if err := os.MkdirAll(cache, 0o700); err != nil {
			log.Printf("WARNING: auto HTTPS: not using a certificate cache: %s", err)
		} else {
			m.Cache = autocert.DirCache(cache)
		}

		return tls.Listen(network, addr, &tls.Config{
			GetCertificate: m.GetCertificate,
		})
	}
}

func cacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, "rustlet-autocert")
}

// selfSignedCert returns a cached localhost certificate pair, generating it
// on first use.
func selfSignedCert() (cert, key string, err error) {
	var (
		cache    = cacheDir()
		certPath = filepath.Join(cache, "localhost.crt")
		keyPath  = filepath.Join(cache, "localhost.key")
	)

	if fileExists(certPath) && fileExists(keyPath) {
		return certPath, keyPath, nil
	}

	if err = os.MkdirAll(cache, 0o700); err != nil {
		return "", "", err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"Localhost"}},
		DNSNames:              []string{"localhost"},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return "", "", err
	}

	if err = writePEM(certPath, "CERTIFICATE", certDER); err != nil {
		return "", "", err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", err
	}

	if err = writePEM(keyPath, "PRIVATE KEY", privDER); err != nil {
		return "", "", err
	}

	return certPath, keyPath, nil
}

func writePEM(path, blockType string, der []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return pem.Encode(file, &pem.Block{Type: blockType, Bytes: der})
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)

	return err == nil && !stat.IsDir()
}

package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// fetchSFTP downloads sftp://host[:port]/path using the registered credential
// map (user, password or privateKey).
func fetchSFTP(ctx context.Context, u *url.URL, creds map[string]string, ceiling int64) (*Result, error) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "22"
	}
	remotePath := u.Path
	if host == "" || remotePath == "" || remotePath == "/" {
		return nil, fmt.Errorf("sftp url must be sftp://host/path")
	}
	if creds == nil || creds["user"] == "" {
		return nil, fmt.Errorf("sftp source requires registered credentials")
	}

	var auths []ssh.AuthMethod
	if privateKey := creds["privateKey"]; privateKey != "" {
		// try to decode as base64, fall back to raw PEM
		keyBytes, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			keyBytes = []byte(privateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	} else if password := creds["password"]; password != "" {
		auths = append(auths, ssh.Password(password))
	} else {
		return nil, fmt.Errorf("no auth method in credentials; set password or privateKey")
	}

	config := &ssh.ClientConfig{
		User:            creds["user"],
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(host, port)

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("create sftp client: %w", err)
	}
	defer sftpClient.Close()

	info, err := sftpClient.Stat(remotePath)
	if err != nil {
		return nil, fmt.Errorf("stat remote file %s: %w", remotePath, err)
	}
	if info.Size() > ceiling {
		return nil, fmt.Errorf("remote file %s is %d bytes: %w", remotePath, info.Size(), ErrTooLarge)
	}

	f, err := sftpClient.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("open remote file %s: %w", remotePath, err)
	}
	defer f.Close()

	data, err := readCapped(f, ceiling)
	if err != nil {
		return nil, err
	}

	return &Result{Bytes: data}, nil
}

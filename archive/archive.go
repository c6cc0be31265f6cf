// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/bitmark-inc/logger"
	"google.golang.org/api/googleapi"

	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
)

// Configuration - at most one of bucket or directory is used
type Configuration struct {
	Bucket    string `gluamapper:"bucket" json:"bucket"`
	Prefix    string `gluamapper:"prefix" json:"prefix"`
	Directory string `gluamapper:"directory" json:"directory"`
}

// ObjectName - archive name of a bulletin payload
func ObjectName(prefix string, hexDigest string) string {
	name := hexDigest + ".txt"
	if "" == prefix {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

func check(hexDigest string, payload string) error {
	if _, err := digest.Bytes(hexDigest); nil != err {
		return err
	}
	if digest.Hash([]byte(payload)) != hexDigest {
		return fault.ErrInvalidDigest
	}
	return nil
}

// GCS - archive to a Google Cloud Storage bucket
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	log    *logger.L
}

// NewGCS - credentials come from the environment
func NewGCS(ctx context.Context, bucket string, prefix string) (*GCS, error) {
	if "" == bucket {
		return nil, fault.ErrMissingParameters
	}
	client, err := storage.NewClient(ctx)
	if nil != err {
		return nil, err
	}
	return &GCS{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: prefix,
		log:    logger.New("archive"),
	}, nil
}

// Archive - create the object only if it does not already exist
func (g *GCS) Archive(ctx context.Context, bulletinID string, hexDigest string, payload string) error {
	if err := check(hexDigest, payload); nil != err {
		return err
	}

	name := ObjectName(g.prefix, hexDigest)
	writer := g.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "text/plain; charset=utf-8"
	writer.Metadata = map[string]string{
		"bulletin_id": bulletinID,
	}

	_, err := io.Copy(writer, strings.NewReader(payload))
	if nil == err {
		err = writer.Close()
	} else {
		_ = writer.Close()
	}

	if preconditionFailed(err) {
		g.log.Debugf("exists: %s  bulletin: %s", name, bulletinID)
		return nil
	}
	if nil != err {
		g.log.Errorf("write: %s  bulletin: %s  error: %s", name, bulletinID, err)
		return fmt.Errorf("%w: %s", fault.ErrArchiveFailed, err)
	}

	g.log.Infof("archived: %s  bulletin: %s  bytes: %d", name, bulletinID, len(payload))
	return nil
}

// Close - release the client
func (g *GCS) Close() error {
	return g.client.Close()
}

// the object already exists
func preconditionFailed(err error) bool {
	var e *googleapi.Error
	return errors.As(err, &e) && http.StatusPreconditionFailed == e.Code
}

// Directory - archive to a local directory
type Directory struct {
	directory string
	prefix    string
	log       *logger.L
}

// NewDirectory - the directory is created if missing
func NewDirectory(directory string, prefix string) (*Directory, error) {
	if "" == directory {
		return nil, fault.ErrMissingParameters
	}
	if err := os.MkdirAll(filepath.Join(directory, filepath.FromSlash(prefix)), 0700); nil != err {
		return nil, err
	}
	return &Directory{
		directory: directory,
		prefix:    prefix,
		log:       logger.New("archive"),
	}, nil
}

// Archive - create the file exclusively, an existing file is kept
func (d *Directory) Archive(ctx context.Context, bulletinID string, hexDigest string, payload string) error {
	if err := check(hexDigest, payload); nil != err {
		return err
	}

	name := filepath.Join(d.directory, filepath.FromSlash(ObjectName(d.prefix, hexDigest)))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		d.log.Debugf("exists: %s  bulletin: %s", name, bulletinID)
		return nil
	}
	if nil != err {
		return fmt.Errorf("%w: %s", fault.ErrArchiveFailed, err)
	}

	_, err = f.WriteString(payload)
	if nil == err {
		err = f.Sync()
	}
	if e := f.Close(); nil == err {
		err = e
	}
	if nil != err {
		_ = os.Remove(name)
		return fmt.Errorf("%w: %s", fault.ErrArchiveFailed, err)
	}

	d.log.Infof("archived: %s  bulletin: %s  bytes: %d", name, bulletinID, len(payload))
	return nil
}

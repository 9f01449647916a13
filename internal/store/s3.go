// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Storage.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage keeps caches in a bucket. The layout mirrors DiskStorage:
// <prefix>/<md5(name)>/.name holds the clear name and
// <prefix>/<md5(name)>/<md5(key)> holds each entry. Names are returned sorted
// since S3 keeps no creation order.
type S3Storage struct {
	Client S3API
	Bucket string
	Prefix string
}

func NewS3Storage(client S3API, bucket, prefix string) (*S3Storage, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &S3Storage{Client: client, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3Storage) key(parts ...string) string {
	if s.Prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{s.Prefix}, parts...)...)
}

func (s *S3Storage) get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get S3 object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return data, true, nil
}

func (s *S3Storage) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put S3 object: %w", err)
	}
	return nil
}

func (s *S3Storage) remove(ctx context.Context, key string) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 object: %w", err)
	}
	return nil
}

// list walks every page below prefix. With a delimiter the common prefixes
// are returned instead of object keys.
func (s *S3Storage) list(ctx context.Context, prefix string, delimiter string) ([]string, error) {
	var results []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	for {
		out, err := s.Client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}
		if delimiter != "" {
			for _, p := range out.CommonPrefixes {
				results = append(results, aws.ToString(p.Prefix))
			}
		} else {
			for _, o := range out.Contents {
				results = append(results, aws.ToString(o.Key))
			}
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return results, nil
}

func (s *S3Storage) Open(ctx context.Context, name string) (Cache, error) {
	c := &S3Cache{name: name, storage: s, dir: s.key(encodeKey(name))}
	ok, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.put(ctx, path.Join(c.dir, nameFile), []byte(name), "text/plain"); err != nil {
			return nil, err
		}
		log.Debugf("created cache %s in s3://%s/%s", name, s.Bucket, c.dir)
	}
	return c, nil
}

func (s *S3Storage) Has(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.get(ctx, s.key(encodeKey(name), nameFile))
	return ok, err
}

func (s *S3Storage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil || !ok {
		return false, err
	}

	keys, err := s.list(ctx, s.key(encodeKey(name))+"/", "")
	if err != nil {
		return false, err
	}
	// Remove the name marker last so a partial delete is still visible.
	marker := s.key(encodeKey(name), nameFile)
	for _, k := range keys {
		if k == marker {
			continue
		}
		if err := s.remove(ctx, k); err != nil {
			return false, err
		}
	}
	if err := s.remove(ctx, marker); err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Storage) Keys(ctx context.Context) ([]string, error) {
	root := ""
	if s.Prefix != "" {
		root = s.Prefix + "/"
	}
	dirs, err := s.list(ctx, root, "/")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range dirs {
		b, ok, err := s.get(ctx, path.Join(d, nameFile))
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, string(bytes.TrimSpace(b)))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Storage) Close() error { return nil }

// S3Cache is a single cache below the storage prefix.
type S3Cache struct {
	name    string
	dir     string
	storage *S3Storage
}

func (c *S3Cache) Name() string { return c.name }

func (c *S3Cache) objectKey(key string) string {
	return path.Join(c.dir, encodeKey(key))
}

func (c *S3Cache) Match(ctx context.Context, req *http.Request) (*Response, bool, error) {
	if !matchable(req) {
		return nil, false, nil
	}
	data, ok, err := c.storage.get(ctx, c.objectKey(Key(req)))
	if err != nil || !ok {
		return nil, false, err
	}
	_, resp, err := decodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

func (c *S3Cache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

// PutAll encodes everything up front. Before an object is overwritten its
// current contents are read, so a failed upload can put every earlier object
// back the way it was.
func (c *S3Cache) PutAll(ctx context.Context, entries []Entry) error {
	type pending struct {
		key  string
		data []byte
	}
	batch := make([]pending, 0, len(entries))
	for _, e := range entries {
		key := Key(e.Request)
		data, err := encodeRecord(key, stamp(e.Response))
		if err != nil {
			return err
		}
		batch = append(batch, pending{key: c.objectKey(key), data: data})
	}

	type uploaded struct {
		key    string
		prev   []byte
		exists bool
	}
	var done []uploaded
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			u := done[i]
			var err error
			if u.exists {
				err = c.storage.put(ctx, u.key, u.prev, "application/json")
			} else {
				err = c.storage.remove(ctx, u.key)
			}
			if err != nil {
				log.WithError(err).Warnf("failed to roll back %s", u.key)
			}
		}
	}

	for _, p := range batch {
		prev, exists, err := c.storage.get(ctx, p.key)
		if err != nil {
			rollback()
			return err
		}
		if err := c.storage.put(ctx, p.key, p.data, "application/json"); err != nil {
			rollback()
			return err
		}
		done = append(done, uploaded{key: p.key, prev: prev, exists: exists})
	}
	return nil
}

func (c *S3Cache) Delete(ctx context.Context, req *http.Request) (bool, error) {
	k := c.objectKey(Key(req))
	_, ok, err := c.storage.get(ctx, k)
	if err != nil || !ok {
		return false, err
	}
	if err := c.storage.remove(ctx, k); err != nil {
		return false, err
	}
	return true, nil
}

func (c *S3Cache) Keys(ctx context.Context) ([]string, error) {
	objects, err := c.storage.list(ctx, c.dir+"/", "")
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, o := range objects {
		if path.Base(o) == nameFile {
			continue
		}
		data, ok, err := c.storage.get(ctx, o)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		key, _, err := decodeRecord(data)
		if err != nil {
			log.WithError(err).Warnf("skipping cache entry %s", o)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package aws

import (
	"testing"

	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

func TestS3OptFns_Endpoint(t *testing.T) {
	fns := S3OptFns(WithEndpoint("http://localhost:9000"), WithRegion("us-east-1"))
	assert.Len(t, fns, 1)

	var o s3v2.Options
	for _, fn := range fns {
		fn(&o)
	}
	if assert.NotNil(t, o.BaseEndpoint) {
		assert.Equal(t, "http://localhost:9000", *o.BaseEndpoint)
	}
	assert.True(t, o.UsePathStyle)
}

func TestS3OptFns_NoEndpoint(t *testing.T) {
	assert.Empty(t, S3OptFns(WithProfile("dev")))
}

func TestCollect(t *testing.T) {
	o := collect([]Option{WithProfile("dev"), WithRegion("eu-west-1")})
	assert.Equal(t, "dev", o.profile)
	assert.Equal(t, "eu-west-1", o.region)
	assert.Equal(t, "", o.endpoint)
}

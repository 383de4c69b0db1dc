package providers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockS3 struct {
	puts map[string][]byte
	err  error
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, _ := io.ReadAll(params.Body)
	m.puts[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver_Archive(t *testing.T) {
	client := &mockS3{puts: make(map[string][]byte)}
	archiver := NewS3Archiver(client, "cost-reports")

	location, err := archiver.Archive(context.Background(), "reports/2024/06/11/run-1.html", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if location != "s3://cost-reports/reports/2024/06/11/run-1.html" {
		t.Errorf("location = %q", location)
	}
	if !bytes.Equal(client.puts["cost-reports/reports/2024/06/11/run-1.html"], []byte("<html></html>")) {
		t.Error("object body not uploaded")
	}

	client.err = errors.New("NoSuchBucket")
	if _, err := archiver.Archive(context.Background(), "k", nil); err == nil {
		t.Error("Archive() should surface upload failures")
	}
}

// Command s3presign generates presigned GET URLs for S3-compatible stores,
// either legacy Signature V2 or SigV4 query authentication. Useful for
// producing client-facing URLs that the proxy will verify and re-sign.
//
//	s3presign -endpoint minio.example.com:9000 -access-key AK -secret-key SK \
//	  -bucket media -key photos/cat.jpg -version 4 -region us-east-1 -expires 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/salehi/s3proxy/pkg/security/sigv4"
)

func main() {
	var (
		endpoint  = flag.String("endpoint", "", "S3 endpoint, host[:port] or URL (required)")
		accessKey = flag.String("access-key", os.Getenv("S3PROXY_CLIENT_ACCESS_KEY"), "access key")
		secretKey = flag.String("secret-key", os.Getenv("S3PROXY_CLIENT_SECRET_KEY"), "secret key")
		bucket    = flag.String("bucket", "", "bucket name (required)")
		key       = flag.String("key", "", "object key (required)")
		expires   = flag.Duration("expires", time.Hour, "URL validity window")
		region    = flag.String("region", "us-east-1", "region for the SigV4 credential scope")
		sigVer    = flag.Int("version", 4, "signature version: 2 or 4")
	)
	flag.Parse()

	if *endpoint == "" || *bucket == "" || *key == "" || *accessKey == "" || *secretKey == "" {
		fmt.Fprintln(os.Stderr, "s3presign: -endpoint, -bucket, -key, -access-key and -secret-key are required")
		flag.Usage()
		os.Exit(2)
	}

	creds := sigv4.Credentials{AccessKey: *accessKey, SecretKey: *secretKey}
	opt := sigv4.PresignOptions{Endpoint: *endpoint, Region: *region, Expires: *expires}

	var (
		url string
		err error
	)
	switch *sigVer {
	case 2:
		url, err = sigv4.PresignV2(creds, *bucket, *key, opt)
	case 4:
		url, err = sigv4.PresignV4(creds, *bucket, *key, opt)
	default:
		fmt.Fprintf(os.Stderr, "s3presign: unsupported signature version %d\n", *sigVer)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "s3presign:", err)
		os.Exit(1)
	}
	fmt.Println(url)
}

package batch

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
)

// BedrockVendor submits batch inference jobs to Bedrock Runtime — the
// vision-model vendor spec.md §4.5 leaves unnamed ("an external vision
// model"). It implements VendorSubmitter.
type BedrockVendor struct {
	Client  *bedrock.Client
	Bucket  string
	RoleArn string
}

// SubmitJob creates a CreateModelInvocationJob request against the
// manifest already written to S3 at manifestURI, and derives a JobID from
// the returned job ARN's trailing segment (the only part a status poll
// needs to key off of).
func (v *BedrockVendor) SubmitJob(ctx context.Context, manifestURI, modelID string, imageCount int) (ids.JobID, error) {
	out, err := v.Client.CreateModelInvocationJob(ctx, &bedrock.CreateModelInvocationJobInput{
		JobName: aws.String(fmt.Sprintf("yorutsuke-ocr-%d", imageCount)),
		ModelId: aws.String(modelID),
		RoleArn: aws.String(v.RoleArn),
		InputDataConfig: &types.ModelInvocationJobInputDataConfigMemberS3InputDataConfig{
			Value: types.ModelInvocationJobS3InputDataConfig{S3Uri: aws.String(manifestURI)},
		},
		OutputDataConfig: &types.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig{
			Value: types.ModelInvocationJobS3OutputDataConfig{
				S3Uri: aws.String(fmt.Sprintf("s3://%s/batch-output/", v.Bucket)),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: create model invocation job: %w", err)
	}

	return ids.NewJobID(jobIDFromArn(aws.ToString(out.JobArn)))
}

// jobIDFromArn extracts the job identifier from a Bedrock job ARN, whose
// final segment is the job id itself (…:model-invocation-job/{jobId}).
func jobIDFromArn(arn string) string {
	if i := strings.LastIndex(arn, "/"); i >= 0 {
		return arn[i+1:]
	}

	return arn
}

package admission

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const laptopItem = `{"jet_product_id": 77, "product_c_txt": "Laptop", "product_p_txt": "999.90", "jet_quantity": "1", "att_name": "16GB"}`

func TestDecodeSubmissionMatchesPlainDecoding(t *testing.T) {
	sub, err := DecodeSubmission([]byte(validPayload))
	require.NoError(t, err)

	assert.Equal(t, decode(t, validPayload), sub)
	assert.Empty(t, sub.malformed)
	assert.Empty(t, MissingFields(sub))
}

func TestDecodeSubmissionKeepsFieldsAroundMalformedItem(t *testing.T) {
	body := strings.Replace(validPayload, laptopItem, `"laptop"`, 1)
	require.NotEqual(t, validPayload, body)

	sub, err := DecodeSubmission([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "12345", string(sub.JetID))
	assert.Equal(t, "Ivan", string(sub.FirstName))
	assert.Len(t, sub.Items, 1)
	assert.Equal(t, []string{"items[0]"}, sub.malformed)
}

func TestDecodeSubmissionReportsMalformedScalars(t *testing.T) {
	body := strings.Replace(validPayload, `"jet_vnoski": "12"`, `"jet_vnoski": {"n": 12}`, 1)
	body = strings.Replace(body, `"jet_quantity": "1"`, `"jet_quantity": [1]`, 1)

	sub, err := DecodeSubmission([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"items[0].jet_quantity", "jet_vnoski"}, sub.malformed)
	assert.Equal(t, "Laptop", string(sub.Items[0].Title))
}

func TestDecodeSubmissionRejectsNonObject(t *testing.T) {
	for _, body := range []string{"", "jet_id=1", "[1,2]", `"text"`} {
		sub, err := DecodeSubmission([]byte(body))
		assert.Error(t, err, body)
		assert.Equal(t, &Submission{}, sub)
	}
}

func TestEvaluateReportsMalformedValueNotEveryField(t *testing.T) {
	p := newPipeline(t, testConfig(), fixedCountry("BG"))

	sub, err := DecodeSubmission([]byte(strings.Replace(validPayload, laptopItem, `"laptop"`, 1)))
	require.NoError(t, err)

	err = p.Evaluate(context.Background(), browserMeta("1.2.3.4"), sub)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, validationErr.Missing)
	assert.Equal(t, []string{"items[0]"}, validationErr.Invalid)
	assert.Equal(t, ReasonInvalidFields, validationErr.Reason())
}

func TestEvaluateChargesMerchantForMalformedSubmission(t *testing.T) {
	cfg := testConfig()
	cfg.MerchantLimit = 1
	p := newPipeline(t, cfg, fixedCountry("BG"))
	ctx := context.Background()

	bad, err := DecodeSubmission([]byte(strings.Replace(validPayload, laptopItem, `"laptop"`, 1)))
	require.NoError(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, p.Evaluate(ctx, browserMeta("1.2.3.4"), bad), &validationErr)

	good, err := DecodeSubmission([]byte(validPayload))
	require.NoError(t, err)
	assert.Equal(t, ReasonRateLimitedMerchant, reasonOf(t, p.Evaluate(ctx, browserMeta("5.6.7.8"), good)))
}

func TestWithoutCovered(t *testing.T) {
	missing := []string{"jet_id", "items[0].jet_product_id", "items[0].product_c_txt", "items[1].jet_quantity", "items[10].att_name"}
	assert.Equal(t,
		[]string{"items[1].jet_quantity", "items[10].att_name"},
		withoutCovered(missing, []string{"jet_id", "items[0]"}),
	)
	assert.Empty(t, withoutCovered(nil, []string{"items"}))
}

package connstring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	info, err := Parse("Data Source=https://cluster.region.kusto.windows.net;Initial Catalog=mydb")
	require.NoError(t, err)
	assert.Equal(t, "https://cluster.region.kusto.windows.net", info.DataSource)
	assert.Equal(t, "mydb", info.InitialCatalog)
}

func TestParseFederatedSecurityAndAliases(t *testing.T) {
	info, err := Parse("Server=https://cluster.kusto.windows.net;Database=mydb;Fed=true;AppClientId=abc;AppKey=secret")
	require.NoError(t, err)
	assert.Equal(t, "https://cluster.kusto.windows.net", info.DataSource)
	assert.Equal(t, "mydb", info.InitialCatalog)
	assert.True(t, info.FederatedSecurity)
	assert.Equal(t, "abc", info.ApplicationClientID)
	assert.Equal(t, "secret", info.ApplicationKey)
}

func TestParseUnknownKeyIsPermanentError(t *testing.T) {
	_, err := Parse("Data Source=https://x;Nonsense Key=1")
	assert.Error(t, err)
}

func TestParseMissingDataSourceIsError(t *testing.T) {
	_, err := Parse("Initial Catalog=mydb")
	assert.Error(t, err)
}

func TestParseEmptyStringYieldsEmptyInfo(t *testing.T) {
	info, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, info.DataSource)
}

func TestParseTrimsWhitespaceAroundSegments(t *testing.T) {
	info, err := Parse("  Data Source = https://cluster ; Initial Catalog = mydb ")
	require.NoError(t, err)
	assert.Equal(t, "https://cluster", info.DataSource)
	assert.Equal(t, "mydb", info.InitialCatalog)
}

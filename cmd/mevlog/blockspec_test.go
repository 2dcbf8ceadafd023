package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBlockSpecSingle(t *testing.T) {
	r, err := parseBlockSpec("42", 1000)
	require.NoError(t, err)
	require.Equal(t, blockRange{From: 42, To: 42}, r)
}

func TestParseBlockSpecLatest(t *testing.T) {
	r, err := parseBlockSpec("latest", 1000)
	require.NoError(t, err)
	require.Equal(t, blockRange{From: 1000, To: 1000}, r)
}

func TestParseBlockSpecClosedRange(t *testing.T) {
	r, err := parseBlockSpec("10:20", 1000)
	require.NoError(t, err)
	require.Equal(t, blockRange{From: 10, To: 20}, r)
}

func TestParseBlockSpecClosedRangeInverted(t *testing.T) {
	_, err := parseBlockSpec("20:10", 1000)
	require.Error(t, err)
}

func TestParseBlockSpecTrailingColon(t *testing.T) {
	r, err := parseBlockSpec("100:", 1000)
	require.NoError(t, err)
	require.Equal(t, blockRange{From: 901, To: 1000}, r)
}

func TestParseBlockSpecTrailingColonLatest(t *testing.T) {
	r, err := parseBlockSpec("100:latest", 1000)
	require.NoError(t, err)
	require.Equal(t, blockRange{From: 901, To: 1000}, r)
}

func TestParseBlockSpecTrailingColonExceedsHead(t *testing.T) {
	_, err := parseBlockSpec("2000:", 1000)
	require.Error(t, err)
}

func TestParseBlockSpecEmpty(t *testing.T) {
	_, err := parseBlockSpec("", 1000)
	require.Error(t, err)
}

func TestParseBlockSpecInvalidNumber(t *testing.T) {
	_, err := parseBlockSpec("abc", 1000)
	require.Error(t, err)
}

func TestNumbersDescending(t *testing.T) {
	r := blockRange{From: 8, To: 10}
	require.Equal(t, []uint64{10, 9, 8}, r.numbersDescending())
}

func TestNumbersDescendingIncludesZero(t *testing.T) {
	r := blockRange{From: 0, To: 2}
	require.Equal(t, []uint64{2, 1, 0}, r.numbersDescending())
}

func TestClampRangeUnlimited(t *testing.T) {
	require.NoError(t, clampRange(blockRange{From: 0, To: 1_000_000}, 0))
}

func TestClampRangeWithinBudget(t *testing.T) {
	require.NoError(t, clampRange(blockRange{From: 1, To: 10}, 10))
}

func TestClampRangeExceedsBudget(t *testing.T) {
	err := clampRange(blockRange{From: 1, To: 11}, 10)
	require.Error(t, err)
}

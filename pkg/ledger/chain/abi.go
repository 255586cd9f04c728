// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chain

// CampaignRegistryABI is the subset of the campaign registry contract
// interface read by the replicator.
const CampaignRegistryABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "campaignId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "advertiser", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "contentRef", "type": "string"}
    ],
    "name": "CampaignCreated",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "campaignId", "type": "uint256"}],
    "name": "getCampaign",
    "outputs": [
      {"internalType": "address", "name": "advertiser", "type": "address"},
      {"internalType": "uint256", "name": "budget", "type": "uint256"},
      {"internalType": "uint8", "name": "duration", "type": "uint8"},
      {"internalType": "string", "name": "contentRef", "type": "string"},
      {"internalType": "uint256", "name": "viewsRemaining", "type": "uint256"},
      {"internalType": "uint8", "name": "category", "type": "uint8"},
      {"internalType": "bool", "name": "active", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "campaignCount",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`
